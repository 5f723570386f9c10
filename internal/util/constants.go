package util

const (
	StorageLocal = "local"
	StorageMinio = "minio"
	StorageOSS   = "oss"
)

// AccessLinkStudentParam 访问链接中携带学生身份的参数名
const AccessLinkStudentParam = "student"
