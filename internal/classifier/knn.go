package classifier

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/bioadapt/internal/sensor"
)

var tracer = otel.Tracer("github.com/fyrsmithlabs/bioadapt/internal/classifier")

const (
	collectionName = "training_trials"
	metaClass      = "class"
)

// KNNConfig configures the nearest-neighbour classifier.
type KNNConfig struct {
	// Neighbours is k.
	Neighbours int `koanf:"neighbours" validate:"gte=1"`
	// MinTrialsPerClass is the training count each class needs before
	// Predict answers.
	MinTrialsPerClass int `koanf:"min_trials_per_class" validate:"gte=1"`
}

// DefaultKNNConfig returns the defaults.
func DefaultKNNConfig() KNNConfig {
	return KNNConfig{Neighbours: 5, MinTrialsPerClass: 2}
}

type trainingRow struct {
	class    int
	features []float64
}

// KNN is a k-nearest-neighbour classifier over standardised trial features.
// The fitted vectors live in an in-memory chromem collection that is rebuilt
// lazily after new training trials arrive.
type KNN struct {
	cfg    KNNConfig
	logger *zap.Logger

	mu         sync.Mutex
	db         *chromem.DB
	collection *chromem.Collection
	rows       []trainingRow
	counts     map[int]int
	scale      scaler
	dirty      bool
}

// NewKNN creates an untrained classifier.
func NewKNN(cfg KNNConfig, logger *zap.Logger) *KNN {
	def := DefaultKNNConfig()
	if cfg.Neighbours <= 0 {
		cfg.Neighbours = def.Neighbours
	}
	if cfg.MinTrialsPerClass <= 0 {
		cfg.MinTrialsPerClass = def.MinTrialsPerClass
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KNN{
		cfg:    cfg,
		logger: logger.Named("classifier"),
		db:     chromem.NewDB(),
		counts: make(map[int]int),
	}
}

// Train records a labelled trial.
func (k *KNN) Train(ctx context.Context, trial []sensor.Entry) error {
	_, span := tracer.Start(ctx, "KNN.Train")
	defer span.End()

	label, err := labelOf(trial)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	features, err := Extract(trial)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if len(k.rows) > 0 && len(k.rows[0].features) != len(features) {
		return ErrChannelLayout
	}
	k.rows = append(k.rows, trainingRow{class: label, features: features})
	k.counts[label]++
	k.dirty = true

	span.SetAttributes(attribute.Int("class", label), attribute.Int("samples", len(trial)))
	k.logger.Debug("training trial recorded",
		zap.Int("class", label),
		zap.Int("samples", len(trial)),
		zap.Int("class_total", k.counts[label]),
	)
	return nil
}

// Trained reports whether both classes reached the minimum trial count.
func (k *KNN) Trained() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.trainedLocked()
}

func (k *KNN) trainedLocked() bool {
	return k.counts[ClassOne] >= k.cfg.MinTrialsPerClass && k.counts[ClassTwo] >= k.cfg.MinTrialsPerClass
}

// Counts returns the number of training trials per class.
func (k *KNN) Counts() map[int]int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return map[int]int{ClassOne: k.counts[ClassOne], ClassTwo: k.counts[ClassTwo]}
}

// Predict returns the similarity-weighted share of class-one neighbours.
func (k *KNN) Predict(ctx context.Context, trial []sensor.Entry) (float64, error) {
	ctx, span := tracer.Start(ctx, "KNN.Predict")
	defer span.End()

	features, err := Extract(trial)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if !k.trainedLocked() {
		span.SetStatus(codes.Error, "untrained")
		return 0, ErrUntrained
	}
	if len(k.rows[0].features) != len(features) {
		return 0, ErrChannelLayout
	}
	if k.dirty {
		if err := k.fitLocked(ctx); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return 0, err
		}
	}

	n := k.cfg.Neighbours
	if count := k.collection.Count(); n > count {
		n = count
	}
	results, err := k.collection.QueryEmbedding(ctx, k.scale.apply(features), n, nil, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("%w: querying neighbours: %v", ErrUnavailable, err)
	}

	var one, total float64
	for _, r := range results {
		// cosine similarity in [-1, 1] shifted to a non-negative weight
		w := (float64(r.Similarity) + 1) / 2
		total += w
		if r.Metadata[metaClass] == strconv.Itoa(ClassOne) {
			one += w
		}
	}
	if total == 0 {
		return 0.5, nil
	}
	confidence := one / total

	span.SetAttributes(attribute.Int("neighbours", len(results)), attribute.Float64("confidence", confidence))
	span.SetStatus(codes.Ok, "success")
	return confidence, nil
}

// fitLocked recomputes the scaler and rebuilds the neighbour collection.
func (k *KNN) fitLocked(ctx context.Context) error {
	matrix := make([][]float64, len(k.rows))
	for i, r := range k.rows {
		matrix[i] = r.features
	}
	k.scale = fitScaler(matrix)

	if k.collection != nil {
		if err := k.db.DeleteCollection(collectionName); err != nil {
			return fmt.Errorf("resetting collection: %w", err)
		}
	}
	collection, err := k.db.GetOrCreateCollection(collectionName, nil, nil)
	if err != nil {
		return fmt.Errorf("creating collection: %w", err)
	}

	docs := make([]chromem.Document, len(k.rows))
	for i, r := range k.rows {
		docs[i] = chromem.Document{
			ID:        strconv.Itoa(i),
			Metadata:  map[string]string{metaClass: strconv.Itoa(r.class)},
			Embedding: k.scale.apply(r.features),
			Content:   "trial " + strconv.Itoa(i),
		}
	}
	if err := collection.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("adding training vectors: %w", err)
	}

	k.collection = collection
	k.dirty = false
	k.logger.Info("classifier fitted",
		zap.Int("trials", len(k.rows)),
		zap.Int("class_one", k.counts[ClassOne]),
		zap.Int("class_two", k.counts[ClassTwo]),
	)
	return nil
}
