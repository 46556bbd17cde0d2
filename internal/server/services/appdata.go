package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/kinveysync/internal/common"
	"github.com/dmitrijs2005/kinveysync/internal/logging"
	"github.com/dmitrijs2005/kinveysync/internal/query"
	"github.com/dmitrijs2005/kinveysync/internal/server/blob"
	"github.com/dmitrijs2005/kinveysync/internal/server/models"
	"github.com/dmitrijs2005/kinveysync/internal/server/repositories/repomanager"
)

const fieldMimeType = "mimeType"

// AppDataService implements the collection operations. It stamps entity
// metadata and, for the _blob collection, hands out presigned transfer
// URLs.
type AppDataService struct {
	rm        repomanager.RepositoryManager
	presigner blob.Presigner
	logger    logging.Logger
	now       func() time.Time
	newID     func() string
}

// NewAppDataService builds the service. A nil presigner leaves _blob
// entities without transfer URLs.
func NewAppDataService(rm repomanager.RepositoryManager, presigner blob.Presigner, logger logging.Logger) *AppDataService {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &AppDataService{
		rm:        rm,
		presigner: presigner,
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

func validateCollection(collection string) error {
	if collection == "" || strings.ContainsAny(collection, "/?#") {
		return fmt.Errorf("%w: invalid collection name %q", common.ErrorValidation, collection)
	}
	return nil
}

func validateQuery(q *query.Query) error {
	if err := q.Validate(); err != nil {
		return fmt.Errorf("%w: %v", common.ErrorValidation, err)
	}
	return nil
}

func (s *AppDataService) timestamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

// stamp sets _kmd.lmt and, when created is empty, _kmd.ect. The creator is
// recorded in _acl unless the entity already names one.
func (s *AppDataService) stamp(doc models.Document, created, userID string) {
	now := s.timestamp()
	if created == "" {
		created = now
	}
	kmd := doc.Section(common.FieldMetadata)
	kmd[common.FieldCreated] = created
	kmd[common.FieldModified] = now
	delete(kmd, common.FieldAuthToken)

	acl := doc.Section(common.FieldACL)
	if c, _ := acl[common.FieldCreator].(string); c == "" && userID != "" {
		acl[common.FieldCreator] = userID
	}
}

func (s *AppDataService) Get(ctx context.Context, appKey, collection, id string) (models.Document, error) {
	if err := validateCollection(collection); err != nil {
		return nil, err
	}
	doc, err := s.rm.AppData().Get(ctx, appKey, collection, id)
	if err != nil {
		return nil, err
	}
	return s.present(ctx, collection, doc, false)
}

func (s *AppDataService) Find(ctx context.Context, appKey, collection string, q *query.Query) ([]models.Document, error) {
	if err := validateCollection(collection); err != nil {
		return nil, err
	}
	if err := validateQuery(q); err != nil {
		return nil, err
	}
	docs, err := s.rm.AppData().Find(ctx, appKey, collection, q)
	if err != nil {
		return nil, err
	}
	out := make([]models.Document, 0, len(docs))
	for _, d := range docs {
		p, err := s.present(ctx, collection, d, false)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Count ignores the pagination of q.
func (s *AppDataService) Count(ctx context.Context, appKey, collection string, q *query.Query) (int, error) {
	if err := validateCollection(collection); err != nil {
		return 0, err
	}
	if err := validateQuery(q); err != nil {
		return 0, err
	}
	return s.rm.AppData().Count(ctx, appKey, collection, q.Unpaginated())
}

// Group reduces the documents matching condition per a. Pagination of
// condition is ignored.
func (s *AppDataService) Group(ctx context.Context, appKey, collection string, a query.Aggregation, condition *query.Query) ([]query.Group, error) {
	if err := validateCollection(collection); err != nil {
		return nil, err
	}
	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorValidation, err)
	}
	if err := validateQuery(condition); err != nil {
		return nil, err
	}
	docs, err := s.rm.AppData().Find(ctx, appKey, collection, condition.Unpaginated())
	if err != nil {
		return nil, err
	}
	groups, err := query.Aggregate(a, nil, docs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorValidation, err)
	}
	return groups, nil
}

// Create inserts doc, generating an _id when it has none. An _id that is
// already taken yields common.ErrorAlreadyExists.
func (s *AppDataService) Create(ctx context.Context, appKey, userID, collection string, doc models.Document) (models.Document, error) {
	if err := validateCollection(collection); err != nil {
		return nil, err
	}
	doc, err := doc.Clone()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorValidation, err)
	}
	if doc == nil {
		doc = models.Document{}
	}
	if doc.ID() == "" {
		doc.SetID(s.newID())
	}
	s.stamp(doc, "", userID)

	isBlob := collection == common.BlobCollection
	if isBlob {
		models.SetStorageKey(doc, blob.StorageKey(appKey, doc.ID(), s.now().UTC()))
	}

	if err := s.rm.AppData().Insert(ctx, appKey, collection, doc); err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, fmt.Errorf("entity %s in %s: %w", doc.ID(), collection, err)
		}
		return nil, err
	}
	return s.present(ctx, collection, doc, isBlob)
}

// Update replaces the entity id with doc, creating it when missing. The
// creation time, creator and storage key of an existing entity are kept.
func (s *AppDataService) Update(ctx context.Context, appKey, userID, collection, id string, doc models.Document) (models.Document, error) {
	if err := validateCollection(collection); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, fmt.Errorf("%w: entity id is empty", common.ErrorValidation)
	}
	doc, err := doc.Clone()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorValidation, err)
	}
	if doc == nil {
		doc = models.Document{}
	}
	doc.SetID(id)

	isBlob := collection == common.BlobCollection
	err = s.rm.WithTx(ctx, func(ctx context.Context, rm repomanager.RepositoryManager) error {
		created, creator, storageKey := "", "", ""
		existing, err := rm.AppData().Get(ctx, appKey, collection, id)
		switch {
		case err == nil:
			created, _ = existing.Section(common.FieldMetadata)[common.FieldCreated].(string)
			creator, _ = existing.Section(common.FieldACL)[common.FieldCreator].(string)
			storageKey = models.FileFrom(existing).StorageKey
		case !errors.Is(err, common.ErrorNotFound):
			return err
		}

		if creator != "" {
			doc.Section(common.FieldACL)[common.FieldCreator] = creator
		}
		s.stamp(doc, created, userID)
		if isBlob {
			if storageKey == "" {
				storageKey = blob.StorageKey(appKey, id, s.now().UTC())
			}
			models.SetStorageKey(doc, storageKey)
		}
		return rm.AppData().Save(ctx, appKey, collection, doc)
	})
	if err != nil {
		return nil, err
	}
	return s.present(ctx, collection, doc, isBlob)
}

// Delete removes one entity. A missing id yields common.ErrorNotFound.
func (s *AppDataService) Delete(ctx context.Context, appKey, collection, id string) (int, error) {
	if err := validateCollection(collection); err != nil {
		return 0, err
	}
	n, err := s.rm.AppData().Delete(ctx, appKey, collection, id)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, fmt.Errorf("entity %s in %s: %w", id, collection, common.ErrorNotFound)
	}
	return n, nil
}

// DeleteByQuery removes every entity matching q and returns the count.
func (s *AppDataService) DeleteByQuery(ctx context.Context, appKey, collection string, q *query.Query) (int, error) {
	if err := validateCollection(collection); err != nil {
		return 0, err
	}
	if err := validateQuery(q); err != nil {
		return 0, err
	}
	var n int
	err := s.rm.WithTx(ctx, func(ctx context.Context, rm repomanager.RepositoryManager) error {
		var err error
		n, err = rm.AppData().DeleteByQuery(ctx, appKey, collection, q)
		return err
	})
	if err != nil {
		return 0, err
	}
	s.logger.Debug(ctx, "deleted by query", "collection", collection, "count", n)
	return n, nil
}

// present strips server-only fields and, for _blob entities, adds the
// download URL and, right after a write, the upload URL.
func (s *AppDataService) present(ctx context.Context, collection string, doc models.Document, upload bool) (models.Document, error) {
	out := models.Public(doc)
	if collection != common.BlobCollection || s.presigner == nil {
		return out, nil
	}
	f := models.FileFrom(doc)
	if f.StorageKey == "" {
		return out, nil
	}

	if upload {
		contentType, _ := doc[fieldMimeType].(string)
		u, err := s.presigner.PresignPut(ctx, f.StorageKey, contentType)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
		}
		out[common.FieldUploadURL] = u
	}
	u, err := s.presigner.PresignGet(ctx, f.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}
	out[common.FieldDownloadURL] = u
	return out, nil
}
