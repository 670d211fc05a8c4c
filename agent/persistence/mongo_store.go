package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BaSui01/cortex/types"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"
)

// =============================================================================
// MongoDB 后端
// =============================================================================

type reasoningDoc struct {
	Query      string `bson:"query"`
	Properties string `bson:"properties"`
	Context    string `bson:"context"`
}

type messageDoc struct {
	ID        string           `bson:"id"`
	Sender    string           `bson:"sender"`
	Type      string           `bson:"type"`
	Content   string           `bson:"content"`
	CreatedAt time.Time        `bson:"created_at"`
	Reasoning []reasoningDoc   `bson:"reasoning,omitempty"`
	Table     []map[string]any `bson:"table,omitempty"`
}

type conversationDoc struct {
	ID          string           `bson:"_id"`
	UserID      string           `bson:"user_id"`
	Title       string           `bson:"title,omitempty"`
	Messages    []messageDoc     `bson:"messages"`
	OutputTable []map[string]any `bson:"output_table"`
	Summary     string           `bson:"summary,omitempty"`
	Highlight   string           `bson:"highlight,omitempty"`
	Metadata    map[string]any   `bson:"metadata,omitempty"`
	CreatedAt   time.Time        `bson:"created_at"`
	LastUpdated time.Time        `bson:"last_updated"`
}

type documentDoc struct {
	ID         string    `bson:"_id"`
	UserID     string    `bson:"user_id"`
	Name       string    `bson:"name"`
	Type       string    `bson:"type"`
	Summary    string    `bson:"summary"`
	Highlights []string  `bson:"highlights"`
	IndexedAt  time.Time `bson:"indexed_at"`
}

type memoryDoc struct {
	ID              string `bson:"_id"`
	ConversationID  string `bson:"conversation_id"`
	UserID          string `bson:"user_id"`
	Summary         string `bson:"summary"`
	Title           string `bson:"title"`
	Highlights      string `bson:"highlights"`
	LastUpdateCount int    `bson:"last_update_count"`
}

// NewMongoStores connects to MongoDB, ensures indexes and returns the
// conversation, document and memory stores sharing one client.
func NewMongoStores(ctx context.Context, cfg MongoConfig, logger *zap.Logger) (*Stores, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "mongo_store"))
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultStoreConfig().Mongo.Timeout
	}

	opts := options.Client().ApplyURI(cfg.URI).SetTimeout(cfg.Timeout)
	if cfg.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(cfg.MaxPoolSize)
	}
	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(cfg.Database)
	if err := ensureIndexes(pingCtx, db); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	base := mongoBase{client: client, timeout: cfg.Timeout, logger: logger}
	logger.Info("mongo stores initialized", zap.String("database", cfg.Database))
	return &Stores{
		Conversations: &MongoConversationStore{mongoBase: base, coll: db.Collection(ConversationCollection)},
		Documents:     &MongoDocumentStore{mongoBase: base, coll: db.Collection(DocumentCollection)},
		Memories:      &MongoMemoryStore{mongoBase: base, coll: db.Collection(MemoryCollection)},
		closer: func() error {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
			defer cancel()
			return client.Disconnect(ctx)
		},
	}, nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		ConversationCollection: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: 1}}},
		},
		DocumentCollection: {
			{
				Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "name", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		MemoryCollection: {
			{
				Keys:    bson.D{{Key: "conversation_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "user_id", Value: 1}}},
		},
	}
	for name, models := range indexes {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", name, err)
		}
	}
	return nil
}

// mongoBase 三个集合共享的客户端与超时；客户端由 Stores.Close 断开。
type mongoBase struct {
	client  *mongo.Client
	timeout time.Duration
	logger  *zap.Logger
}

func (b mongoBase) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, b.timeout)
}

func (b mongoBase) Close() error { return nil }

func (b mongoBase) Ping(ctx context.Context) error {
	ctx, cancel := b.opContext(ctx)
	defer cancel()
	return b.client.Ping(ctx, nil)
}

func notFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}

// MongoConversationStore stores conversations in the "conversation" collection.
type MongoConversationStore struct {
	mongoBase
	coll *mongo.Collection
}

func (s *MongoConversationStore) Create(ctx context.Context, conv *types.Conversation) (*types.Conversation, error) {
	if conv == nil || conv.OwnerID == "" {
		return nil, ErrInvalidInput
	}
	doc := toConversationDoc(conv)
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.LastUpdated = now

	ctx, cancel := s.opContext(ctx)
	defer cancel()
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("insert conversation: %w", err)
	}
	s.logger.Debug("conversation created", zap.String("id", doc.ID), zap.String("owner", doc.UserID))
	return fromConversationDoc(doc), nil
}

func (s *MongoConversationStore) Get(ctx context.Context, id string) (*types.Conversation, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()
	var doc conversationDoc
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return nil, notFound(err)
	}
	return fromConversationDoc(doc), nil
}

func (s *MongoConversationStore) ListByOwner(ctx context.Context, ownerID string) ([]*types.Conversation, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()
	cur, err := s.coll.Find(ctx, bson.M{"user_id": ownerID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	var docs []conversationDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode conversations: %w", err)
	}
	out := make([]*types.Conversation, len(docs))
	for i, d := range docs {
		out[i] = fromConversationDoc(d)
	}
	return out, nil
}

func (s *MongoConversationStore) Append(ctx context.Context, req AppendRequest) (*types.Conversation, error) {
	set := bson.M{"last_updated": time.Now().UTC()}
	if req.OutputTable != nil {
		set["output_table"] = toRows(req.OutputTable)
	}
	update := bson.M{
		"$push": bson.M{"messages": toMessageDoc(req.Message)},
		"$set":  set,
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc conversationDoc
	if err := s.coll.FindOneAndUpdate(ctx, bson.M{"_id": req.ConversationID}, update, opts).Decode(&doc); err != nil {
		return nil, notFound(err)
	}
	return fromConversationDoc(doc), nil
}

func (s *MongoConversationStore) SetSummary(ctx context.Context, id, title, summary string) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": id},
		bson.M{"$set": bson.M{"title": title, "summary": summary}})
	if err != nil {
		return fmt.Errorf("update conversation summary: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// MongoDocumentStore stores Document records in the "documents" collection.
type MongoDocumentStore struct {
	mongoBase
	coll *mongo.Collection
}

func (s *MongoDocumentStore) UpsertDocument(ctx context.Context, doc types.Document) error {
	if doc.OwnerID == "" || doc.Name == "" {
		return ErrInvalidInput
	}
	id := doc.ID
	if id == "" {
		id = uuid.NewString()
	}
	highlights := doc.Highlights
	if highlights == nil {
		highlights = []string{}
	}
	filter := bson.M{"user_id": doc.OwnerID, "name": doc.Name}
	update := bson.M{
		"$set": bson.M{
			"type":       doc.DocType,
			"summary":    doc.Summary,
			"highlights": highlights,
			"indexed_at": doc.IndexedAt,
		},
		"$setOnInsert": bson.M{"_id": id},
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()
	if _, err := s.coll.UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true)); err != nil {
		return fmt.Errorf("upsert document %q: %w", doc.Name, err)
	}
	return nil
}

func (s *MongoDocumentStore) GetDocument(ctx context.Context, ownerID, name string) (*types.Document, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()
	var d documentDoc
	if err := s.coll.FindOne(ctx, bson.M{"user_id": ownerID, "name": name}).Decode(&d); err != nil {
		return nil, notFound(err)
	}
	doc := fromDocumentDoc(d)
	return &doc, nil
}

func (s *MongoDocumentStore) ListByOwner(ctx context.Context, ownerID string) ([]types.Document, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()
	cur, err := s.coll.Find(ctx, bson.M{"user_id": ownerID},
		options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	var docs []documentDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode documents: %w", err)
	}
	out := make([]types.Document, len(docs))
	for i, d := range docs {
		out[i] = fromDocumentDoc(d)
	}
	return out, nil
}

// MongoMemoryStore stores Memory records in the "memories" collection.
type MongoMemoryStore struct {
	mongoBase
	coll *mongo.Collection
}

func (s *MongoMemoryStore) GetByConversation(ctx context.Context, conversationID string) (*types.Memory, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()
	var d memoryDoc
	if err := s.coll.FindOne(ctx, bson.M{"conversation_id": conversationID}).Decode(&d); err != nil {
		return nil, notFound(err)
	}
	m := fromMemoryDoc(d)
	return &m, nil
}

func (s *MongoMemoryStore) Save(ctx context.Context, m *types.Memory) (*types.Memory, error) {
	if m == nil || m.ConversationID == "" {
		return nil, ErrInvalidInput
	}
	doc := toMemoryDoc(*m)

	ctx, cancel := s.opContext(ctx)
	defer cancel()
	if doc.ID == "" {
		doc.ID = uuid.NewString()
		if _, err := s.coll.InsertOne(ctx, doc); err != nil {
			return nil, fmt.Errorf("insert memory: %w", err)
		}
	} else {
		res, err := s.coll.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc)
		if err != nil {
			return nil, fmt.Errorf("replace memory: %w", err)
		}
		if res.MatchedCount == 0 {
			return nil, ErrNotFound
		}
	}
	saved := fromMemoryDoc(doc)
	return &saved, nil
}

func (s *MongoMemoryStore) ListByOwner(ctx context.Context, ownerID string) ([]types.Memory, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()
	cur, err := s.coll.Find(ctx, bson.M{"user_id": ownerID})
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}
	var docs []memoryDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode memories: %w", err)
	}
	out := make([]types.Memory, len(docs))
	for i, d := range docs {
		out[i] = fromMemoryDoc(d)
	}
	return out, nil
}

// =============================================================================
// 模型转换
// =============================================================================

func toRows(t types.Table) []map[string]any {
	if t == nil {
		return nil
	}
	rows := make([]map[string]any, len(t))
	for i, r := range t {
		rows[i] = map[string]any(r)
	}
	return rows
}

func fromRows(rows []map[string]any) types.Table {
	if rows == nil {
		return nil
	}
	t := make(types.Table, len(rows))
	for i, r := range rows {
		t[i] = types.TableRow(r)
	}
	return t
}

func toMessageDoc(m types.Message) messageDoc {
	d := messageDoc{
		ID:        m.ID,
		Sender:    m.Sender,
		Type:      string(m.Kind),
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
		Table:     toRows(m.Table),
	}
	for _, s := range m.Reasoning {
		d.Reasoning = append(d.Reasoning, reasoningDoc{Query: s.SubQueryText, Properties: s.StructuredHint, Context: s.ComposedContext})
	}
	return d
}

func fromMessageDoc(d messageDoc) types.Message {
	m := types.Message{
		ID:        d.ID,
		Sender:    d.Sender,
		Kind:      types.MessageKind(d.Type),
		Content:   d.Content,
		CreatedAt: d.CreatedAt,
		Table:     fromRows(d.Table),
	}
	for _, s := range d.Reasoning {
		m.Reasoning = append(m.Reasoning, types.ReasoningStep{SubQueryText: s.Query, StructuredHint: s.Properties, ComposedContext: s.Context})
	}
	return m
}

func toConversationDoc(c *types.Conversation) conversationDoc {
	d := conversationDoc{
		ID:          c.ID,
		UserID:      c.OwnerID,
		Title:       c.Title,
		Messages:    make([]messageDoc, len(c.Messages)),
		OutputTable: toRows(c.OutputTable),
		Summary:     c.Summary,
		Highlight:   c.Highlight,
		Metadata:    c.Metadata,
		CreatedAt:   c.CreatedAt,
		LastUpdated: c.LastUpdated,
	}
	if d.OutputTable == nil {
		d.OutputTable = []map[string]any{}
	}
	for i, m := range c.Messages {
		d.Messages[i] = toMessageDoc(m)
	}
	return d
}

func fromConversationDoc(d conversationDoc) *types.Conversation {
	c := &types.Conversation{
		ID:          d.ID,
		OwnerID:     d.UserID,
		Title:       d.Title,
		Messages:    make([]types.Message, len(d.Messages)),
		OutputTable: fromRows(d.OutputTable),
		Summary:     d.Summary,
		Highlight:   d.Highlight,
		Metadata:    d.Metadata,
		CreatedAt:   d.CreatedAt,
		LastUpdated: d.LastUpdated,
	}
	for i, m := range d.Messages {
		c.Messages[i] = fromMessageDoc(m)
	}
	return c
}

func fromDocumentDoc(d documentDoc) types.Document {
	return types.Document{
		ID:         d.ID,
		OwnerID:    d.UserID,
		Name:       d.Name,
		DocType:    d.Type,
		Summary:    d.Summary,
		Highlights: d.Highlights,
		IndexedAt:  d.IndexedAt,
	}
}

func toMemoryDoc(m types.Memory) memoryDoc {
	return memoryDoc{
		ID:              m.ID,
		ConversationID:  m.ConversationID,
		UserID:          m.OwnerID,
		Summary:         m.Summary,
		Title:           m.Title,
		Highlights:      m.Highlights,
		LastUpdateCount: m.LastUpdateCount,
	}
}

func fromMemoryDoc(d memoryDoc) types.Memory {
	return types.Memory{
		ID:              d.ID,
		ConversationID:  d.ConversationID,
		OwnerID:         d.UserID,
		Summary:         d.Summary,
		Title:           d.Title,
		Highlights:      d.Highlights,
		LastUpdateCount: d.LastUpdateCount,
	}
}
