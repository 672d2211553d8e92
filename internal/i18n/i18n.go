// Package i18n holds the user-facing literals of the client. Status texts the
// state holders attach to results (assistant errors, history prompts, auth
// failures) are looked up here so the TUI and CLI can render them localized.
package i18n

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

// Message IDs shared across packages
const (
	MsgAIError              = "AIError"
	MsgHistoryLoginRequired = "HistoryLoginRequired"
	MsgHistoryLoadFailed    = "HistoryLoadFailed"
	MsgHistoryEmpty         = "HistoryEmpty"
	MsgNetworkError         = "NetworkError"
	MsgServerError          = "ServerError"
	MsgRequestFailed        = "RequestFailed"
	MsgInstructorLoadFailed = "InstructorLoadFailed"
	MsgInstructorSaveFailed = "InstructorSaveFailed"
	MsgExerciseCreated      = "ExerciseCreated"
	MsgExerciseDeleted      = "ExerciseDeleted"
	MsgSelectExercise       = "SelectExercise"
	MsgLoading              = "Loading"
	MsgExercisesCount       = "ExercisesCount"
	MsgDemoBanner           = "DemoBanner"
	MsgCorrect              = "Correct"
	MsgIncorrect            = "Incorrect"
	MsgRowsReturned         = "RowsReturned"
	MsgAllTags              = "AllTags"
	MsgLoggedInAs           = "LoggedInAs"
	MsgNotLoggedIn          = "NotLoggedIn"
)

// DefaultLanguage is used when no localizer is attached to a context
const DefaultLanguage = "en"

var jsonUnmarshal = json.Unmarshal

//go:embed locales/*.json
var localeFS embed.FS

type ctxKey struct{}

var (
	mu       sync.RWMutex
	bundle   *i18n.Bundle
	fallback *i18n.Localizer
)

func init() {
	if err := Init(DefaultLanguage); err != nil {
		panic(err)
	}
}

// Init loads the translation bundle and makes lang the fallback language.
func Init(lang string) error {
	tag, err := language.Parse(lang)
	if err != nil {
		return fmt.Errorf("parse language %q: %w", lang, err)
	}

	b := i18n.NewBundle(language.English)
	b.RegisterUnmarshalFunc("json", jsonUnmarshal)

	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		return fmt.Errorf("read locales dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := localeFS.ReadFile("locales/" + e.Name())
		if err != nil {
			return fmt.Errorf("read locale file %s: %w", e.Name(), err)
		}
		if _, err := b.ParseMessageFileBytes(data, e.Name()); err != nil {
			return fmt.Errorf("parse locale file %s: %w", e.Name(), err)
		}
		slog.Debug("loaded locale file", "file", e.Name())
	}

	mu.Lock()
	bundle = b
	fallback = i18n.NewLocalizer(b, tag.String(), DefaultLanguage)
	mu.Unlock()
	return nil
}

// NewLocalizer creates a localizer for the given language.
func NewLocalizer(lang string) *i18n.Localizer {
	mu.RLock()
	defer mu.RUnlock()
	return i18n.NewLocalizer(bundle, lang, DefaultLanguage)
}

// WithLocalizer stores a localizer in the context.
func WithLocalizer(ctx context.Context, loc *i18n.Localizer) context.Context {
	return context.WithValue(ctx, ctxKey{}, loc)
}

func localizerFromCtx(ctx context.Context) *i18n.Localizer {
	if ctx != nil {
		if loc, ok := ctx.Value(ctxKey{}).(*i18n.Localizer); ok {
			return loc
		}
	}
	mu.RLock()
	defer mu.RUnlock()
	return fallback
}

// T translates a message by ID.
func T(ctx context.Context, msgID string) string {
	return localize(ctx, &i18n.LocalizeConfig{MessageID: msgID})
}

// Td translates a message by ID with template data.
func Td(ctx context.Context, msgID string, data map[string]any) string {
	return localize(ctx, &i18n.LocalizeConfig{
		MessageID:    msgID,
		TemplateData: data,
	})
}

// Tp translates a pluralized message by ID.
func Tp(ctx context.Context, msgID string, count int) string {
	return localize(ctx, &i18n.LocalizeConfig{
		MessageID:    msgID,
		PluralCount:  count,
		TemplateData: map[string]any{"Count": count},
	})
}

func localize(ctx context.Context, cfg *i18n.LocalizeConfig) string {
	s, err := localizerFromCtx(ctx).Localize(cfg)
	if err != nil {
		slog.Warn("missing translation", "id", cfg.MessageID, "error", err)
		return cfg.MessageID
	}
	return s
}
