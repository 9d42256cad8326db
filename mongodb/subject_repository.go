package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/nocturne-dev/nocturne-auth/domain"
	serrors "github.com/nocturne-dev/nocturne-auth/errors"
)

// SubjectRepository implements domain.SubjectReader over the identity
// subsystem's collection. Read-only: subjects are never written here.
type SubjectRepository struct {
	subjects *mongo.Collection
}

// NewSubjectRepository creates a new SubjectRepository instance.
func NewSubjectRepository(db *mongo.Database) *SubjectRepository {
	return &SubjectRepository{subjects: db.Collection(SubjectsCollection)}
}

func (r *SubjectRepository) GetSubjectByID(ctx context.Context, id string) (*domain.Subject, error) {
	var subject domain.Subject
	err := r.subjects.FindOne(ctx, bson.M{"_id": id}).Decode(&subject)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, serrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find subject: %w", err)
	}
	return &subject, nil
}
