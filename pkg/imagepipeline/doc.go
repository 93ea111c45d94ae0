// Package imagepipeline is the ingestion-to-delivery pipeline for hotel
// operations image assets. It derives webp and jpeg encodings plus four
// fixed thumbnail buckets for every upload, persists one metadata record
// per asset, serves the right variant via content negotiation with an
// immutable caching contract, and guarantees that an asset referenced by
// any live entity is never silently destroyed.
//
// The package exposes a Service wired from a Repository (metadata), a
// BlobStore (variant bytes) and an optional Cache. Sibling packages
// provide implementations: repo/memory and repo/postgres, storage/fs,
// storage/memory and storage/s3, and an HTTP surface in api.
package imagepipeline
