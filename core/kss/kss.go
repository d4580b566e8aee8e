package kss

import "time"

// kss stores record payloads outside of the database and mints time-limited
// signed URLs for later retrieval. There are two drivers: AWS S3 and a local
// filesystem for development and tests.

// Method is the HTTP method a pre-signed URL is valid for.
type Method string

// supported pre-sign methods
const (
	Get Method = "GET"
	Put Method = "PUT"
)

// Driver defines the interface for the KSS service
type Driver interface {
	UploadData(key string, data []byte, contentType string) error
	GetPreSignedURL(method Method, key string, expireIn time.Duration) (URL string, err error)
}

// DriverType represents the different types of KSS drivers
type DriverType string

// DriverTypeLocal is the local filesystem implementation of the KSS service
const DriverTypeLocal DriverType = "Local"

// DriverTypeAWSS3 is the AWS S3 implementation of the KSS service
const DriverTypeAWSS3 DriverType = "AWSS3"

// None is used when there is no KSS implementation
const None DriverType = ""

// S3Configuration contains the configuration for the S3 KSS service
type S3Configuration struct {
	AWSBucketName string
	AWSRegion     string
	AccessID      string
	AccessKey     string
	KeyPrefix     string
}
