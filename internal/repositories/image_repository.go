package repositories

import (
	"bytes"
	"errors"
	"io"

	"github.com/yuehan04/pawconnect/backend/internal/apperrors"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
)

// ImageRepository is the blob store for pet images. Postings only keep the
// opaque reference returned by Put, never the bytes.
//
// GridFS streams manage their own deadlines, so these methods take no
// context; set deadlines on the bucket if needed.
type ImageRepository interface {
	Put(filename string, source io.Reader) (string, error)
	Get(ref string) ([]byte, error)
}

// GridFSImageRepository implements ImageRepository on a MongoDB GridFS
// bucket, matching where the rest of the board data already lives.
type GridFSImageRepository struct {
	bucket *gridfs.Bucket
}

// NewGridFSImageRepository creates an image repository on the database's
// default GridFS bucket.
func NewGridFSImageRepository(db *mongo.Database) (*GridFSImageRepository, error) {
	bucket, err := gridfs.NewBucket(db)
	if err != nil {
		return nil, apperrors.Storage(err)
	}
	return &GridFSImageRepository{bucket: bucket}, nil
}

// Put uploads the image bytes and returns the hex reference to store on the
// posting.
func (r *GridFSImageRepository) Put(filename string, source io.Reader) (string, error) {
	id, err := r.bucket.UploadFromStream(filename, source)
	if err != nil {
		return "", apperrors.Storage(err)
	}
	return id.Hex(), nil
}

// Get downloads the image bytes for a stored reference.
func (r *GridFSImageRepository) Get(ref string) ([]byte, error) {
	objID, err := primitive.ObjectIDFromHex(ref)
	if err != nil {
		return nil, apperrors.InvalidInput("invalid image reference")
	}

	var buf bytes.Buffer
	if _, err := r.bucket.DownloadToStream(objID, &buf); err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return nil, apperrors.NotFound("image")
		}
		return nil, apperrors.Storage(err)
	}
	return buf.Bytes(), nil
}
