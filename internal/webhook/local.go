package webhook

import (
	"context"
	"net/http"
	"os"
	"path/filepath"

	"github.com/grwebhook/grwebhook/pkg/archive"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Replays raw webhook bodies from a file or directory, plain or gzip compressed as archived.
// Replays skip authentication.
func Local(path string, logLevel zerolog.Level) {
	zerolog.SetGlobalLevel(logLevel)

	settings, err := LoadSettings(false)
	if err != nil {
		log.Error().Err(err).Msg("failed to load settings")
		return
	}

	ctx := context.Background()
	service, err := NewService(ctx, settings)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialise service")
		return
	}
	defer service.Close()

	summary := &ReplaySummary{}
	service.Handler.process(ctx, path, summary)

	log.Info().Int("files", summary.Files).Int("recorded", summary.Recorded).Int("failed", summary.Failed).Msg("replay finished")
}

type ReplaySummary struct {
	Files    int
	Recorded int
	Failed   int
}

func (handler *Handler) process(ctx context.Context, path string, summary *ReplaySummary) {
	file, err := os.Open(path)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("failed to open file")
		return
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("failed to stat file")
		return
	}

	if stat.IsDir() {
		files, err := file.ReadDir(0)
		if err != nil {
			log.Error().Err(err).Str("path", path).Msg("failed to read directory")
			return
		}

		for _, f := range files {
			handler.process(ctx, filepath.Join(path, f.Name()), summary)
		}
		return
	}

	handler.processFile(ctx, file, summary)
}

func (handler *Handler) processFile(ctx context.Context, file *os.File, summary *ReplaySummary) {
	summary.Files++

	data, err := archive.Read(file.Name(), file)
	if err != nil {
		log.Error().Err(err).Str("path", file.Name()).Msg("failed to read file")
		summary.Failed++
		return
	}

	res := handler.Replay(ctx, string(data))
	if res.StatusCode != http.StatusOK || res.Body != MessageSuccess {
		log.Warn().Str("path", file.Name()).Int("status", res.StatusCode).Str("response", res.Body).Msg("failed to replay file")
		summary.Failed++
		return
	}

	summary.Recorded++
}
