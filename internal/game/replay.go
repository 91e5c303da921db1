package game

import (
	"compress/gzip"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/magefree/mage-rules-go/internal/game/state"
)

const recordingVersion = 1

// ErrReplayDiverged is returned when a replayed game reaches a different
// state than the recorded one.
var ErrReplayDiverged = errors.New("replay diverged")

// Recording is a game reduced to its setup and the actions applied to it.
// Checksums[i] is the game checksum after Actions[i].
type Recording struct {
	GameID    string
	Setup     Setup
	Config    Config
	Actions   []Action
	Checksums []string
}

// Len returns the number of recorded actions.
func (r *Recording) Len() int { return len(r.Actions) }

// Replay rebuilds a game from its recording. Every action must succeed
// and, where a checksum was recorded, lead to the same state. upTo limits
// how many actions are applied; a negative value applies all of them.
func Replay(rec *Recording, cards state.Cards, upTo int, logger *zap.Logger) (*Game, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	g, err := New(rec.Setup, cards, nil, rec.Config, logger)
	if err != nil {
		return nil, fmt.Errorf("replay %s: %w", rec.GameID, err)
	}
	n := len(rec.Actions)
	if upTo >= 0 && upTo < n {
		n = upTo
	}
	for i := 0; i < n; i++ {
		a := rec.Actions[i]
		if res := g.Apply(a); res.Err != nil {
			return nil, fmt.Errorf("replay %s: action %d (%s by %s): %w", rec.GameID, i, a.Kind, a.Player, res.Err)
		}
		if i >= len(rec.Checksums) || rec.Checksums[i] == "" {
			continue
		}
		sum, err := g.Checksum()
		if err != nil {
			return nil, err
		}
		if sum != rec.Checksums[i] {
			logger.Warn("replay diverged",
				zap.String("game_id", rec.GameID),
				zap.Int("action", i),
				zap.String("want", rec.Checksums[i]),
				zap.String("got", sum))
			return nil, fmt.Errorf("%w: game %s after action %d", ErrReplayDiverged, rec.GameID, i)
		}
	}
	logger.Debug("replayed game",
		zap.String("game_id", rec.GameID),
		zap.Int("actions", n))
	return g, nil
}

// SaveToFile writes the recording to <directory>/<game id>.replay as
// gzipped gob.
func (r *Recording) SaveToFile(directory string) error {
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	filename := filepath.Join(directory, fmt.Sprintf("%s.replay", r.GameID))
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	gzipWriter := gzip.NewWriter(file)
	encoder := gob.NewEncoder(gzipWriter)
	metadata := recordingMetadata{
		GameID:      r.GameID,
		Timestamp:   time.Now(),
		Version:     recordingVersion,
		ActionCount: len(r.Actions),
	}
	if err := encoder.Encode(&metadata); err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	if err := encoder.Encode(r); err != nil {
		return fmt.Errorf("failed to encode recording: %w", err)
	}
	if err := gzipWriter.Close(); err != nil {
		return fmt.Errorf("failed to flush recording: %w", err)
	}
	return nil
}

// LoadRecordingFromFile reads a recording written by SaveToFile.
func LoadRecordingFromFile(directory, gameID string) (*Recording, error) {
	filename := filepath.Join(directory, fmt.Sprintf("%s.replay", gameID))
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	gzipReader, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gzipReader.Close()

	decoder := gob.NewDecoder(gzipReader)
	var metadata recordingMetadata
	if err := decoder.Decode(&metadata); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	if metadata.Version != recordingVersion {
		return nil, fmt.Errorf("unsupported replay version: %d", metadata.Version)
	}
	var rec Recording
	if err := decoder.Decode(&rec); err != nil {
		return nil, fmt.Errorf("failed to decode recording: %w", err)
	}
	if len(rec.Actions) != metadata.ActionCount {
		return nil, fmt.Errorf("recording %s has %d actions, header says %d", gameID, len(rec.Actions), metadata.ActionCount)
	}
	return &rec, nil
}

type recordingMetadata struct {
	GameID      string
	Timestamp   time.Time
	Version     int
	ActionCount int
}

// Recorder keeps the recordings of the games a Manager hosts.
type Recorder struct {
	logger  *zap.Logger
	mu      sync.RWMutex
	records map[string]*Recording
	saveDir string
}

// NewRecorder creates a recorder that saves into saveDir.
func NewRecorder(logger *zap.Logger, saveDir string) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{
		logger:  logger,
		records: make(map[string]*Recording),
		saveDir: saveDir,
	}
}

// Start begins recording a game.
func (rr *Recorder) Start(g *Game) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	// A restored game brings the actions that led to it, without checksums.
	log := g.Log()
	rr.records[g.ID()] = &Recording{
		GameID:    g.ID(),
		Setup:     g.setup,
		Config:    g.cfg,
		Actions:   log,
		Checksums: make([]string, len(log)),
	}
	rr.logger.Info("started recording", zap.String("game_id", g.ID()))
}

// Record appends one applied action and the checksum it led to.
func (rr *Recorder) Record(gameID string, a Action, checksum string) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	rec, ok := rr.records[gameID]
	if !ok {
		return
	}
	rec.Actions = append(rec.Actions, a.clone())
	rec.Checksums = append(rec.Checksums, checksum)
}

// Get returns a copy of a game's recording.
func (rr *Recorder) Get(gameID string) (*Recording, bool) {
	rr.mu.RLock()
	defer rr.mu.RUnlock()

	rec, ok := rr.records[gameID]
	if !ok {
		return nil, false
	}
	cp := *rec
	cp.Actions = make([]Action, len(rec.Actions))
	for i, a := range rec.Actions {
		cp.Actions[i] = a.clone()
	}
	cp.Checksums = append([]string(nil), rec.Checksums...)
	return &cp, true
}

// Save writes a recording to disk and forgets it.
func (rr *Recorder) Save(gameID string) error {
	rr.mu.Lock()
	rec, ok := rr.records[gameID]
	if !ok {
		rr.mu.Unlock()
		return fmt.Errorf("no recording found for game %s", gameID)
	}
	delete(rr.records, gameID)
	rr.mu.Unlock()

	if err := rec.SaveToFile(rr.saveDir); err != nil {
		return fmt.Errorf("failed to save recording: %w", err)
	}
	rr.logger.Info("saved recording to disk",
		zap.String("game_id", gameID),
		zap.Int("actions", rec.Len()),
		zap.String("directory", rr.saveDir))
	return nil
}

// Load reads a saved recording.
func (rr *Recorder) Load(gameID string) (*Recording, error) {
	rec, err := LoadRecordingFromFile(rr.saveDir, gameID)
	if err != nil {
		return nil, err
	}
	rr.logger.Info("loaded recording from disk",
		zap.String("game_id", gameID),
		zap.Int("actions", rec.Len()))
	return rec, nil
}

// Clear forgets a recording without saving it.
func (rr *Recorder) Clear(gameID string) {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	delete(rr.records, gameID)
}
