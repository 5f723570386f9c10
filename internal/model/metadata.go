package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"
)

// MetadataKind 合作方附加数据的类别
type MetadataKind string

const (
	MetadataProgress     MetadataKind = "progress"
	MetadataCertificate  MetadataKind = "certificate"
	MetadataSync         MetadataKind = "sync"
	MetadataUnrecognized MetadataKind = "unrecognized"
)

// 未识别的数据最多保留条数
const maxUnrecognizedEntries = 10

var errUnrecognized = errors.New("unrecognized metadata payload")

type ProgressPayload struct {
	ProgressPercent  *float64   `json:"progressPercent,omitempty"`
	TimeSpentSeconds *int64     `json:"timeSpentSeconds,omitempty"`
	LastAccessed     *time.Time `json:"lastAccessed,omitempty"`
}

type CertificatePayload struct {
	CertificateID   string     `json:"certificateId,omitempty"`
	CertificateURL  string     `json:"certificateUrl,omitempty"`
	VerificationURL string     `json:"verificationUrl,omitempty"`
	IssuedAt        *time.Time `json:"issuedAt,omitempty"`
	ArchiveURL      string     `json:"archiveUrl,omitempty"`
	ArchiveKey      string     `json:"archiveKey,omitempty"`
}

type SyncPayload struct {
	Channel      string    `json:"channel"`
	SyncedAt     time.Time `json:"syncedAt"`
	RemoteStatus string    `json:"remoteStatus,omitempty"`
}

// MetadataEntry 单条合作方数据，Kind 决定哪个字段有效
type MetadataEntry struct {
	Kind        MetadataKind
	Progress    *ProgressPayload
	Certificate *CertificatePayload
	Sync        *SyncPayload
	Raw         json.RawMessage
}

// PartnerMetadata 报名/结业记录上保存的合作方数据，按类别分区
type PartnerMetadata struct {
	Progress     *ProgressPayload    `json:"progress,omitempty"`
	Certificate  *CertificatePayload `json:"certificate,omitempty"`
	Sync         *SyncPayload        `json:"sync,omitempty"`
	Unrecognized []json.RawMessage   `json:"unrecognized,omitempty"`
}

// metadataShape 用于识别原始数据的形状
type metadataShape struct {
	Kind             MetadataKind `json:"kind"`
	ProgressPercent  *float64     `json:"progressPercent"`
	TimeSpentSeconds *int64       `json:"timeSpentSeconds"`
	CertificateID    string       `json:"certificateId"`
	CertificateURL   string       `json:"certificateUrl"`
	Channel          string       `json:"channel"`
	SyncedAt         *time.Time   `json:"syncedAt"`
}

// ParseMetadataEntry 将合作方原始 JSON 归类。显式的 kind 字段优先，否则按字段特征判断
func ParseMetadataEntry(raw json.RawMessage) MetadataEntry {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return MetadataEntry{Kind: MetadataUnrecognized}
	}

	var shape metadataShape
	if err := json.Unmarshal(trimmed, &shape); err != nil {
		return MetadataEntry{Kind: MetadataUnrecognized, Raw: json.RawMessage(trimmed)}
	}

	kind := shape.Kind
	if kind == "" {
		switch {
		case shape.CertificateID != "" || shape.CertificateURL != "":
			kind = MetadataCertificate
		case shape.ProgressPercent != nil || shape.TimeSpentSeconds != nil:
			kind = MetadataProgress
		case shape.Channel != "" && shape.SyncedAt != nil:
			kind = MetadataSync
		}
	}

	entry := MetadataEntry{Kind: kind}
	var err error
	switch kind {
	case MetadataProgress:
		entry.Progress = &ProgressPayload{}
		err = json.Unmarshal(trimmed, entry.Progress)
	case MetadataCertificate:
		entry.Certificate = &CertificatePayload{}
		err = json.Unmarshal(trimmed, entry.Certificate)
	case MetadataSync:
		entry.Sync = &SyncPayload{}
		err = json.Unmarshal(trimmed, entry.Sync)
	default:
		err = errUnrecognized
	}
	if err != nil {
		return MetadataEntry{Kind: MetadataUnrecognized, Raw: json.RawMessage(trimmed)}
	}
	return entry
}

// Merge 合并一条数据，同类别后写覆盖
func (m *PartnerMetadata) Merge(entry MetadataEntry) {
	switch entry.Kind {
	case MetadataProgress:
		if entry.Progress != nil {
			m.Progress = entry.Progress
		}
	case MetadataCertificate:
		if entry.Certificate != nil {
			m.Certificate = entry.Certificate
		}
	case MetadataSync:
		if entry.Sync != nil {
			m.Sync = entry.Sync
		}
	default:
		if len(entry.Raw) == 0 {
			return
		}
		for _, existing := range m.Unrecognized {
			if bytes.Equal(existing, entry.Raw) {
				return
			}
		}
		m.Unrecognized = append(m.Unrecognized, entry.Raw)
		if len(m.Unrecognized) > maxUnrecognizedEntries {
			m.Unrecognized = m.Unrecognized[len(m.Unrecognized)-maxUnrecognizedEntries:]
		}
	}
}
