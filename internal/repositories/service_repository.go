package repositories

import (
	"context"
	"errors"
	"strings"

	"github.com/yuehan04/pawconnect/backend/internal/apperrors"
	"github.com/yuehan04/pawconnect/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// ServiceRepository defines the data operations for service postings.
//
// AppendReply must be an atomic nested-array append: concurrent appends to
// the same posting (same or different thread owners) must both land. The
// status transitions must be single conditional document updates so two
// concurrent confirms cannot both succeed.
type ServiceRepository interface {
	CreateService(ctx context.Context, posting *models.ServicePosting) error
	GetServiceByID(ctx context.Context, id string) (*models.ServicePosting, error)
	GetAllServices(ctx context.Context) ([]models.ServicePosting, error)
	DeleteService(ctx context.Context, id string) error
	AppendReply(ctx context.Context, id, threadOwner string, entry models.ReplyEntry) error
	ConfirmMatch(ctx context.Context, id string, matched models.UserSnapshot) error
	CompleteService(ctx context.Context, id string) error
	CancelService(ctx context.Context, id string) error
}

// MongoServiceRepository implements ServiceRepository on the "service"
// collection.
type MongoServiceRepository struct {
	collection *mongo.Collection
}

// NewMongoServiceRepository creates a new MongoServiceRepository.
func NewMongoServiceRepository(db *mongo.Database) *MongoServiceRepository {
	return &MongoServiceRepository{collection: db.Collection("service")}
}

func serviceObjectID(id string) (primitive.ObjectID, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, apperrors.InvalidInput("invalid service ID format")
	}
	return objID, nil
}

// CreateService inserts a new posting, assigning its id.
func (r *MongoServiceRepository) CreateService(ctx context.Context, posting *models.ServicePosting) error {
	posting.ID = primitive.NewObjectID()
	if _, err := r.collection.InsertOne(ctx, posting); err != nil {
		return apperrors.Storage(err)
	}
	return nil
}

// GetServiceByID retrieves a posting by its hex id.
func (r *MongoServiceRepository) GetServiceByID(ctx context.Context, id string) (*models.ServicePosting, error) {
	objID, err := serviceObjectID(id)
	if err != nil {
		return nil, err
	}

	var posting models.ServicePosting
	err = r.collection.FindOne(ctx, bson.M{"_id": objID}).Decode(&posting)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.NotFound("service")
		}
		return nil, apperrors.Storage(err)
	}
	return &posting, nil
}

// GetAllServices retrieves every posting. Listing order is applied at the
// service boundary, not here, because post_time is a client-supplied string.
func (r *MongoServiceRepository) GetAllServices(ctx context.Context) ([]models.ServicePosting, error) {
	cursor, err := r.collection.Find(ctx, bson.D{})
	if err != nil {
		return nil, apperrors.Storage(err)
	}
	defer cursor.Close(ctx)

	var postings []models.ServicePosting
	if err = cursor.All(ctx, &postings); err != nil {
		return nil, apperrors.Storage(err)
	}
	return postings, nil
}

// DeleteService hard-deletes a posting. Replies are embedded in the
// document, so they go with it atomically.
func (r *MongoServiceRepository) DeleteService(ctx context.Context, id string) error {
	objID, err := serviceObjectID(id)
	if err != nil {
		return err
	}

	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": objID})
	if err != nil {
		return apperrors.Storage(err)
	}
	if res.DeletedCount == 0 {
		return apperrors.NotFound("service")
	}
	return nil
}

// validateThreadOwner rejects thread owners that cannot serve as a document
// key. The owner becomes part of a "replies.<owner>" update path, so a dot
// would nest the lane under a sub-document that later fails to decode, and a
// "$" or NUL errors the update server-side.
func validateThreadOwner(threadOwner string) error {
	if threadOwner == "" || strings.ContainsAny(threadOwner, ".$\x00") {
		return apperrors.InvalidInput("thread owner must not be empty or contain '.', '$' or NUL")
	}
	return nil
}

// AppendReply pushes a reply entry onto the thread owner's lane with a
// nested-path $push, creating the lane if it does not exist. Concurrent
// appends cannot clobber each other.
func (r *MongoServiceRepository) AppendReply(ctx context.Context, id, threadOwner string, entry models.ReplyEntry) error {
	objID, err := serviceObjectID(id)
	if err != nil {
		return err
	}
	if err := validateThreadOwner(threadOwner); err != nil {
		return err
	}

	update := bson.M{"$push": bson.M{"replies." + threadOwner: entry}}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": objID}, update)
	if err != nil {
		return apperrors.Storage(err)
	}
	if res.MatchedCount == 0 {
		return apperrors.NotFound("service")
	}
	return nil
}

// transitionStatus performs a compare-and-swap status update: the document
// must currently be in a status that may transition to toStatus (per
// models.CanTransition) or the update matches nothing. extra fields are set
// alongside the new status in the same update.
func (r *MongoServiceRepository) transitionStatus(ctx context.Context, objID primitive.ObjectID, toStatus int, extra bson.M) error {
	set := bson.M{"status": toStatus}
	for k, v := range extra {
		set[k] = v
	}

	filter := bson.M{"_id": objID, "status": bson.M{"$in": models.StatusSources(toStatus)}}
	res, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return apperrors.Storage(err)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	// Nothing matched: distinguish a missing posting from a wrong status.
	err = r.collection.FindOne(ctx, bson.M{"_id": objID}).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return apperrors.NotFound("service")
	}
	if err != nil {
		return apperrors.Storage(err)
	}
	return apperrors.Conflict("service is not in a state that allows this transition")
}

// ConfirmMatch atomically binds the counterparty snapshot and moves the
// posting from pending to matched. An already-matched or terminal posting
// fails with a conflict instead of silently overwriting the match.
func (r *MongoServiceRepository) ConfirmMatch(ctx context.Context, id string, matched models.UserSnapshot) error {
	objID, err := serviceObjectID(id)
	if err != nil {
		return err
	}
	return r.transitionStatus(ctx, objID, models.StatusMatched, bson.M{"matched_user": matched})
}

// CompleteService moves a matched posting to completed.
func (r *MongoServiceRepository) CompleteService(ctx context.Context, id string) error {
	objID, err := serviceObjectID(id)
	if err != nil {
		return err
	}
	return r.transitionStatus(ctx, objID, models.StatusCompleted, nil)
}

// CancelService moves a pending or matched posting to canceled.
func (r *MongoServiceRepository) CancelService(ctx context.Context, id string) error {
	objID, err := serviceObjectID(id)
	if err != nil {
		return err
	}
	return r.transitionStatus(ctx, objID, models.StatusCanceled, nil)
}
