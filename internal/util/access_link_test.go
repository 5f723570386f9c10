package util

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func studentValues(t *testing.T, link string) []string {
	t.Helper()
	_, rawQuery, _ := strings.Cut(link, "?")
	if i := strings.IndexByte(rawQuery, '#'); i >= 0 {
		rawQuery = rawQuery[:i]
	}
	q, err := url.ParseQuery(rawQuery)
	require.NoError(t, err)
	return q["student"]
}

func TestBuildAccessLink(t *testing.T) {
	tests := []struct {
		name string
		base string
		id   string
		want string
	}{
		{
			name: "absolute url without query",
			base: "https://partner.example.com/course/abc",
			want: "https://partner.example.com/course/abc?student=s-1",
		},
		{
			name: "absolute url keeps other params",
			base: "https://partner.example.com/course/abc?lang=en",
			want: "https://partner.example.com/course/abc?lang=en&student=s-1",
		},
		{
			name: "existing student replaced",
			base: "https://partner.example.com/course/abc?student=old&student=older",
			want: "https://partner.example.com/course/abc?student=s-1",
		},
		{
			name: "relative path",
			base: "/learn/abc?ref=mail",
			want: "/learn/abc?ref=mail&student=s-1",
		},
		{
			name: "fragment preserved",
			base: "https://partner.example.com/course/abc#intro",
			want: "https://partner.example.com/course/abc?student=s-1#intro",
		},
		{
			name: "unparseable reference",
			base: "%zz/course?student=old&x=1",
			want: "%zz/course?x=1&student=s-1",
		},
		{
			name: "undecodable token kept verbatim",
			base: "https://partner.example.com/course/abc?token=a%zz&student=old",
			want: "https://partner.example.com/course/abc?token=a%zz&student=s-1",
		},
		{
			name: "semicolon pair kept verbatim",
			base: "https://partner.example.com/course/abc?x=1;y=2&student=old",
			want: "https://partner.example.com/course/abc?x=1;y=2&student=s-1",
		},
		{
			name: "unparseable reference with undecodable token",
			base: "%zz/course?token=a%zz&student=old",
			want: "%zz/course?token=a%zz&student=s-1",
		},
		{
			name: "signature order and encoding preserved",
			base: "https://partner.example.com/c/1?sig=AbC%2Bz%3D%3D&exp=1700000000",
			want: "https://partner.example.com/c/1?sig=AbC%2Bz%3D%3D&exp=1700000000&student=s-1",
		},
		{
			name: "encoded student key replaced",
			base: "/learn/abc?stud%65nt=old&ref=mail",
			want: "/learn/abc?ref=mail&student=s-1",
		},
		{
			name: "student id escaped",
			base: "/learn/abc",
			id:   "a b&c",
			want: "/learn/abc?student=a+b%26c",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := tt.id
			if id == "" {
				id = "s-1"
			}
			assert.Equal(t, tt.want, BuildAccessLink(tt.base, id))
		})
	}
}

func TestBuildAccessLink_LastWriteWins(t *testing.T) {
	bases := []string{
		"https://partner.example.com/course/abc?x=1",
		"course-abc",
		"%zz/course",
	}
	for _, base := range bases {
		first := BuildAccessLink(base, "alice")
		second := BuildAccessLink(first, "bob")

		assert.Equal(t, []string{"bob"}, studentValues(t, second), base)
		assert.Equal(t, second, BuildAccessLink(second, "bob"), "rebuilding with the same id is stable")
	}
}

func TestAccessLinkMatchesCourse(t *testing.T) {
	link := "https://partner.example.com/course/abc-123?student=s-1"
	assert.True(t, AccessLinkMatchesCourse(link, "abc-123"))
	assert.False(t, AccessLinkMatchesCourse(link, "xyz"))
	assert.False(t, AccessLinkMatchesCourse(link, ""))

	// 主机、查询参数和部分路径段都不算匹配
	other := "https://other-partner.example.com/course/xyz?student=caeea05f-1b2c-4d5e-8f90-a1b2c3d4e5f6"
	assert.False(t, AccessLinkMatchesCourse(other, "a"))
	assert.False(t, AccessLinkMatchesCourse(other, "other-partner.example.com"))
	assert.False(t, AccessLinkMatchesCourse(other, "caeea05f-1b2c-4d5e-8f90-a1b2c3d4e5f6"))
	assert.False(t, AccessLinkMatchesCourse(link, "abc"))

	assert.True(t, AccessLinkMatchesCourse("/learn/c%20one/intro", "c one"))
	assert.True(t, AccessLinkMatchesCourse("course-abc", "course-abc"))
}
