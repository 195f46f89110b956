package mongodb

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/lottoplay/momo-backend/internal/models"
	"github.com/lottoplay/momo-backend/internal/repositories"
)

// terminalStatuses is reused in update filters so a terminal record can
// never match a status write.
var terminalStatuses = []models.PaymentStatus{
	models.StatusSuccess,
	models.StatusFailed,
	models.StatusCancelled,
	models.StatusExpired,
}

// PaymentTransactionRepository implements the repositories.PaymentTransactionRepository interface
type PaymentTransactionRepository struct {
	collection *mongo.Collection
}

// NewPaymentTransactionRepository creates a new PaymentTransactionRepository
func NewPaymentTransactionRepository(db *mongo.Database) repositories.PaymentTransactionRepository {
	return &PaymentTransactionRepository{
		collection: db.Collection("payment_transactions"),
	}
}

// Create creates a new payment transaction
func (r *PaymentTransactionRepository) Create(ctx context.Context, txn *models.PaymentTransaction) error {
	now := time.Now()
	txn.CreatedAt = now
	txn.UpdatedAt = now
	_, err := r.collection.InsertOne(ctx, txn)
	return err
}

// FindByID finds a payment transaction by its internal id
func (r *PaymentTransactionRepository) FindByID(ctx context.Context, id string) (*models.PaymentTransaction, error) {
	var txn models.PaymentTransaction
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&txn)
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// FindByProviderRef finds a payment transaction by the gateway's transaction id
func (r *PaymentTransactionRepository) FindByProviderRef(ctx context.Context, providerTransactionID string) (*models.PaymentTransaction, error) {
	var txn models.PaymentTransaction
	err := r.collection.FindOne(ctx, bson.M{"providerTransactionId": providerTransactionID}).Decode(&txn)
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// FindByUserID finds payment transactions for a user with pagination
func (r *PaymentTransactionRepository) FindByUserID(ctx context.Context, userID string, page, limit int) ([]*models.PaymentTransaction, error) {
	opts := options.Find().
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit)).
		SetSort(bson.M{"createdAt": -1})

	cursor, err := r.collection.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var txns []*models.PaymentTransaction
	if err := cursor.All(ctx, &txns); err != nil {
		return nil, err
	}
	return txns, nil
}

// FindStuck finds non-terminal transactions older than the cutoff that
// have a provider transaction id, newest first, capped at the limit.
// Transactions that never reached the gateway are excluded; they cannot
// be reconciled by re-querying and are left for manual handling.
func (r *PaymentTransactionRepository) FindStuck(ctx context.Context, q repositories.StuckQuery) ([]*models.PaymentTransaction, error) {
	filter := bson.M{
		"status":                bson.M{"$in": []models.PaymentStatus{models.StatusPending, models.StatusProcessing}},
		"createdAt":             bson.M{"$lt": q.Cutoff},
		"providerTransactionId": bson.M{"$exists": true, "$ne": ""},
	}
	if q.UserID != "" {
		filter["userId"] = q.UserID
	}

	opts := options.Find().
		SetSort(bson.M{"createdAt": -1}).
		SetLimit(int64(q.Limit))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var txns []*models.PaymentTransaction
	if err := cursor.All(ctx, &txns); err != nil {
		return nil, err
	}
	return txns, nil
}

// ApplyStatus applies a status transition under the monotonic-terminal
// guard. The guard lives in the update filter itself: a record whose
// stored status is already terminal never matches, so concurrent writers
// (status check, sweeper, webhook) cannot overwrite a terminal state.
func (r *PaymentTransactionRepository) ApplyStatus(ctx context.Context, id string, update repositories.StatusUpdate) (*models.PaymentTransaction, bool, error) {
	set := bson.M{
		"status":    update.Status,
		"updatedAt": time.Now(),
	}
	if update.ProviderStatus != "" {
		set["providerStatus"] = update.ProviderStatus
	}
	if update.ErrorMessage != "" {
		set["errorMessage"] = update.ErrorMessage
	}
	if update.CompletedAt != nil {
		set["completedAt"] = update.CompletedAt
	}
	if update.FailedAt != nil {
		set["failedAt"] = update.FailedAt
	}

	filter := bson.M{
		"_id":    id,
		"status": bson.M{"$nin": terminalStatuses},
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var txn models.PaymentTransaction
	err := r.collection.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&txn)
	if err == mongo.ErrNoDocuments {
		// Either unknown id or already terminal; re-read to tell the two apart.
		current, ferr := r.FindByID(ctx, id)
		if ferr != nil {
			return nil, false, ferr
		}
		return current, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &txn, true, nil
}

// MarkBackgroundCheck stamps the reconciliation bookkeeping fields.
func (r *PaymentTransactionRepository) MarkBackgroundCheck(ctx context.Context, id string, checkErr string) error {
	set := bson.M{
		"lastBackgroundCheckAt": time.Now(),
		"updatedAt":             time.Now(),
	}
	if checkErr != "" {
		set["errorMessage"] = checkErr
	}

	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": set,
		"$inc": bson.M{"backgroundCheckCount": 1},
	})
	return err
}

// SetProviderRef records the gateway-assigned transaction id after a
// successful initiation call.
func (r *PaymentTransactionRepository) SetProviderRef(ctx context.Context, id, providerTransactionID, providerStatus string) error {
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{
			"providerTransactionId": providerTransactionID,
			"providerStatus":        providerStatus,
			"updatedAt":             time.Now(),
		},
	})
	return err
}
