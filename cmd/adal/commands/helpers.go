package commands

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/adal-ai/adal-go/internal/rag"
	"github.com/adal-ai/adal-go/internal/store"
)

// envOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envInt returns the named environment variable parsed as an int, or
// fallback if the variable is unset or not a valid integer.
func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// buildRetriever wraps the index in the adaptive retriever, sized from the
// RETRIEVAL_* environment variables. A nil index yields a nil retriever;
// the chat service then answers with its fixed fallback message.
func buildRetriever(idx rag.VectorIndex) (*rag.AdaptiveRetriever, error) {
	if idx == nil {
		return nil, nil
	}
	r, err := rag.NewAdaptiveRetriever(idx,
		envInt("RETRIEVAL_POOL_SIZE", 0),
		envInt("RETRIEVAL_TOP_K", 0),
	)
	if err != nil {
		return nil, fmt.Errorf("building retriever: %w", err)
	}
	return r, nil
}

// openHistory opens the conversation history store. ADAL_HISTORY_DB
// overrides the default path (~/.adal/history.db); "disabled" turns
// history off. Failures disable history rather than aborting startup, so
// the chat API still answers without persistence.
func openHistory(log *slog.Logger) *store.SQLiteStore {
	dbPath := os.Getenv("ADAL_HISTORY_DB")
	if dbPath == "disabled" {
		log.Info("history: disabled via ADAL_HISTORY_DB=disabled")
		return nil
	}
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			log.Warn("history: could not resolve default DB path, disabling", slog.Any("error", err))
			return nil
		}
	}

	st, err := store.Open(dbPath)
	if err != nil {
		log.Warn("history: failed to open store, disabling", slog.Any("error", err))
		return nil
	}
	log.Info("history: store opened", slog.String("path", dbPath))
	return st
}
