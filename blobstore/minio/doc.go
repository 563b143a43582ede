// Package minio provides a blobstore.Store on the MinIO client.
//
// It works with MinIO and other S3-compatible systems such as Ceph, SeaweedFS
// and Garage, without AWS dependencies.
//
// # Basic Usage
//
//	store, err := minio.Open(ctx, minio.Config{
//	    Endpoint:  "localhost:9000",
//	    AccessKey: "minioadmin",
//	    SecretKey: "minioadmin",
//	    Bucket:    "models",
//	    Prefix:    "featurespace/",
//	})
//
// An existing client can be wrapped with NewStore.
package minio
