package vectorstore

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Tracer for OpenTelemetry instrumentation.
var tracer = otel.Tracer("knowd.vectorstore.qdrant")

// collectionNamePattern validates collection names.
// Pattern: lowercase letters, numbers, underscores, 1-64 characters.
var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// indexedFields are the payload fields that carry keyword indexes so
// exact-match filters stay cheap.
var indexedFields = []string{"filename", "content_hash"}

// QdrantConfig holds configuration for the Qdrant gRPC client.
type QdrantConfig struct {
	// Host is the Qdrant server hostname or IP address.
	Host string

	// Port is the Qdrant gRPC port (6334, not the 6333 REST port).
	Port int

	// APIKey authenticates against Qdrant Cloud. Optional for local.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool

	// CollectionName is the knowledge base collection.
	CollectionName string

	// VectorSize is the embedding dimensionality. Must match the
	// embedding provider output.
	VectorSize uint64

	// MaxMessageSize is the maximum gRPC message size in bytes.
	MaxMessageSize int
}

// ApplyDefaults sets default values for unset fields.
func (c *QdrantConfig) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 50 * 1024 * 1024 // 50MB
	}
}

// Validate validates the configuration.
func (c QdrantConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host required", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port: %d", ErrInvalidConfig, c.Port)
	}
	if c.CollectionName == "" {
		return fmt.Errorf("%w: collection name required", ErrInvalidConfig)
	}
	if c.VectorSize == 0 {
		return fmt.Errorf("%w: vector size required", ErrInvalidConfig)
	}
	return ValidateCollectionName(c.CollectionName)
}

// ValidateCollectionName validates a collection name.
// Rejects uppercase, special characters, and path traversal.
func ValidateCollectionName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: collection name cannot be empty", ErrInvalidCollectionName)
	}
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: collection name must match ^[a-z0-9_]{1,64}$, got %q", ErrInvalidCollectionName, name)
	}
	return nil
}

// QdrantStore is a Store implementation on Qdrant's native gRPC client.
type QdrantStore struct {
	client *qdrant.Client
	config QdrantConfig
	logger *zap.Logger
}

// NewQdrantStore connects to Qdrant and verifies the connection with a
// health check. Collection-creation failure later is fatal to the
// ingestion pipeline, so callers should run EnsureCollection at startup.
func NewQdrantStore(config QdrantConfig, logger *zap.Logger) (*QdrantStore, error) {
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   config.Host,
		Port:   config.Port,
		APIKey: config.APIKey,
		UseTLS: config.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(config.MaxMessageSize),
				grpc.MaxCallSendMsgSize(config.MaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: connecting: %v", ErrStore, err)
	}

	store := &QdrantStore{client: client, config: config, logger: logger}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.HealthCheck(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: health check: %v", ErrStore, err)
	}

	return store, nil
}

// Close closes the gRPC connection.
func (s *QdrantStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// EnsureCollection creates the collection with cosine distance and the
// keyword payload indexes on filename and content_hash, only if absent.
func (s *QdrantStore) EnsureCollection(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "QdrantStore.EnsureCollection")
	defer span.End()

	span.SetAttributes(attribute.String("collection", s.config.CollectionName))

	exists, err := s.collectionExists(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if !exists {
		err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: s.config.CollectionName,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     s.config.VectorSize,
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("%w: creating collection %s: %v", ErrStore, s.config.CollectionName, err)
		}
		s.logger.Info("created collection",
			zap.String("collection", s.config.CollectionName),
			zap.Uint64("vector_size", s.config.VectorSize))
	}

	// Index creation is idempotent; filters on these fields require it.
	for _, field := range indexedFields {
		_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: s.config.CollectionName,
			FieldName:      field,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
			Wait:           qdrant.PtrOf(true),
		})
		if err != nil {
			s.logger.Warn("could not create payload index",
				zap.String("field", field), zap.Error(err))
		}
	}

	span.SetStatus(codes.Ok, "ensured")
	return nil
}

func (s *QdrantStore) collectionExists(ctx context.Context) (bool, error) {
	_, err := s.client.GetCollectionInfo(ctx, s.config.CollectionName)
	if err != nil {
		if st, ok := status.FromError(err); ok && st.Code() == grpccodes.NotFound {
			return false, nil
		}
		return false, fmt.Errorf("%w: checking collection %s: %v", ErrStore, s.config.CollectionName, err)
	}
	return true, nil
}

// Upsert writes or overwrites points by identifier.
func (s *QdrantStore) Upsert(ctx context.Context, points []Point) error {
	ctx, span := tracer.Start(ctx, "QdrantStore.Upsert")
	defer span.End()

	span.SetAttributes(
		attribute.Int("point_count", len(points)),
		attribute.String("collection", s.config.CollectionName),
	)

	if len(points) == 0 {
		return nil
	}

	qpoints := make([]*qdrant.PointStruct, len(points))
	for i, p := range points {
		qpoints[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(p.ID),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: payloadToQdrant(p.Payload),
		}
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.config.CollectionName,
		Points:         qpoints,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%w: upserting %d points: %v", ErrStore, len(points), err)
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// Search returns at most limit points scoring at or above threshold,
// ordered by descending similarity.
func (s *QdrantStore) Search(ctx context.Context, vector []float32, limit int, threshold float32, filter *Filter) ([]SearchResult, error) {
	ctx, span := tracer.Start(ctx, "QdrantStore.Search")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", s.config.CollectionName),
		attribute.Int("limit", limit),
		attribute.Float64("threshold", float64(threshold)),
	)

	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive, got %d", ErrStore, limit)
	}

	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.config.CollectionName,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		ScoreThreshold: qdrant.PtrOf(threshold),
		WithPayload:    qdrant.NewWithPayload(true),
		Filter:         filterToQdrant(filter),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: searching: %v", ErrStore, err)
	}

	out := make([]SearchResult, len(results))
	for i, point := range results {
		out[i] = SearchResult{
			ID:      pointIDString(point.Id),
			Score:   point.Score,
			Payload: payloadFromQdrant(point.Payload),
		}
	}

	span.SetAttributes(attribute.Int("result_count", len(out)))
	span.SetStatus(codes.Ok, "success")
	return out, nil
}

// Scroll pages through points matching the filter. cursor is the opaque
// resume token from a previous call; empty starts from the beginning.
// An empty returned cursor means the scan is exhausted.
func (s *QdrantStore) Scroll(ctx context.Context, filter *Filter, pageSize int, cursor string) ([]StoredPoint, string, error) {
	ctx, span := tracer.Start(ctx, "QdrantStore.Scroll")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", s.config.CollectionName),
		attribute.Int("page_size", pageSize),
	)

	if pageSize <= 0 {
		pageSize = 100
	}

	var offset *qdrant.PointId
	if cursor != "" {
		offset = qdrant.NewIDUUID(cursor)
	}

	points, nextOffset, err := s.client.ScrollAndOffset(ctx, &qdrant.ScrollPoints{
		CollectionName: s.config.CollectionName,
		Filter:         filterToQdrant(filter),
		Offset:         offset,
		Limit:          qdrant.PtrOf(uint32(pageSize)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, "", fmt.Errorf("%w: scrolling: %v", ErrStore, err)
	}

	out := make([]StoredPoint, len(points))
	for i, point := range points {
		out[i] = StoredPoint{
			ID:      pointIDString(point.Id),
			Payload: payloadFromQdrant(point.Payload),
		}
	}

	next := ""
	if nextOffset != nil {
		next = pointIDString(nextOffset)
	}

	span.SetAttributes(attribute.Int("point_count", len(out)))
	span.SetStatus(codes.Ok, "success")
	return out, next, nil
}

// Delete removes points by id. Absent ids are a no-op on the Qdrant side.
func (s *QdrantStore) Delete(ctx context.Context, ids []string) error {
	ctx, span := tracer.Start(ctx, "QdrantStore.Delete")
	defer span.End()

	span.SetAttributes(
		attribute.Int("id_count", len(ids)),
		attribute.String("collection", s.config.CollectionName),
	)

	if len(ids) == 0 {
		return nil
	}

	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = qdrant.NewIDUUID(id)
	}

	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.config.CollectionName,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{Ids: pointIDs},
			},
		},
		Wait: qdrant.PtrOf(true),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%w: deleting %d points: %v", ErrStore, len(ids), err)
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// CollectionInfo returns point count and vector configuration.
func (s *QdrantStore) CollectionInfo(ctx context.Context) (*CollectionInfo, error) {
	ctx, span := tracer.Start(ctx, "QdrantStore.CollectionInfo")
	defer span.End()

	info, err := s.client.GetCollectionInfo(ctx, s.config.CollectionName)
	if err != nil {
		if st, ok := status.FromError(err); ok && st.Code() == grpccodes.NotFound {
			span.SetStatus(codes.Error, "collection not found")
			return nil, ErrCollectionNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: collection info: %v", ErrStore, err)
	}

	pointCount := 0
	if info.PointsCount != nil {
		pointCount = int(*info.PointsCount)
	}

	span.SetStatus(codes.Ok, "success")
	return &CollectionInfo{
		Name:       s.config.CollectionName,
		PointCount: pointCount,
		VectorSize: int(s.config.VectorSize),
		Distance:   "Cosine",
	}, nil
}

var _ Store = (*QdrantStore)(nil)
