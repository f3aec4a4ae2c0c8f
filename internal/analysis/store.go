package analysis

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Metadata records when and on how much data a user's model was trained.
type Metadata struct {
	LastTrainDate time.Time `json:"last_train_date"`
	TrainingCount int       `json:"training_count"`
	ModelType     string    `json:"model_type"`
}

// ParamStore persists trained model parameters and metadata, one pair of
// JSON files per user. Existence of the model file is the "is trained"
// predicate.
type ParamStore struct {
	dir string
}

// NewParamStore creates the storage directory if needed.
func NewParamStore(dir string) (*ParamStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create models dir: %w", err)
	}
	return &ParamStore{dir: dir}, nil
}

func (s *ParamStore) modelPath(userID string) string {
	return filepath.Join(s.dir, userID+"_model.json")
}

func (s *ParamStore) metadataPath(userID string) string {
	return filepath.Join(s.dir, userID+"_meta.json")
}

// IsTrained reports whether a persisted model exists for the user.
func (s *ParamStore) IsTrained(userID string) bool {
	_, err := os.Stat(s.modelPath(userID))
	return err == nil
}

// SaveModel writes the model parameters for a user.
func (s *ParamStore) SaveModel(userID string, net *BudgetNet) error {
	return s.writeJSON(s.modelPath(userID), net)
}

// LoadModel reads the model parameters for a user.
func (s *ParamStore) LoadModel(userID string) (*BudgetNet, error) {
	data, err := os.ReadFile(s.modelPath(userID))
	if err != nil {
		return nil, fmt.Errorf("failed to read model: %w", err)
	}
	net := &BudgetNet{}
	if err := json.Unmarshal(data, net); err != nil {
		return nil, fmt.Errorf("failed to decode model: %w", err)
	}
	return net, nil
}

// SaveMetadata writes training metadata for a user.
func (s *ParamStore) SaveMetadata(userID string, meta *Metadata) error {
	return s.writeJSON(s.metadataPath(userID), meta)
}

// LoadMetadata reads training metadata for a user. A missing file returns
// zero metadata, not an error.
func (s *ParamStore) LoadMetadata(userID string) (*Metadata, error) {
	data, err := os.ReadFile(s.metadataPath(userID))
	if os.IsNotExist(err) {
		return &Metadata{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}
	meta := &Metadata{}
	if err := json.Unmarshal(data, meta); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	return meta, nil
}

func (s *ParamStore) writeJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}
