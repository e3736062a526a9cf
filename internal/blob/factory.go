package blob

import (
	"context"
	"fmt"
	"strings"

	appcfg "github.com/Somchit-cmd/adminawaylog/internal/config"
)

type Logger interface {
	Printf(format string, v ...any)
}

// NewBlobStore builds a blob store using mode local|s3|cloudinary|auto.
// A nil store means photos are kept inline in the report.
func NewBlobStore(ctx context.Context, cfg appcfg.BlobConfig, logger Logger) (Store, string, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = appcfg.BlobModeLocal
	}

	switch mode {
	case appcfg.BlobModeLocal:
		logf(logger, "INFO blob: mode=local (forced), photos stored inline")
		return nil, appcfg.BlobModeLocal, nil

	case appcfg.BlobModeAuto:
		if cfg.S3.IsConfigured() {
			logf(logger, "INFO blob.s3: code=s3_ready %s", cfg.S3.DiagnosticsSummary())
			store, err := NewS3Store(ctx, cfg.S3)
			if err == nil {
				logf(logger, "INFO blob: mode=s3 (auto, configured)")
				return store, appcfg.BlobModeS3, nil
			}
			logf(logger, "WARN blob.s3: init_failed=%q, trying cloudinary", err.Error())
		} else {
			level, code, msg := cfg.S3.Diagnostics()
			logf(logger, "%s blob.s3: code=%s %s", level, code, msg)
		}

		if cfg.Cloudinary.IsConfigured() {
			store, err := NewCloudinaryStore(cfg.Cloudinary)
			if err == nil {
				logf(logger, "INFO blob: mode=cloudinary (auto, configured) cloud=%s", cfg.Cloudinary.CloudName)
				return store, appcfg.BlobModeCloudinary, nil
			}
			logf(logger, "WARN blob.cloudinary: init_failed=%q, fallback=local", err.Error())
		} else {
			logf(logger, "INFO blob.cloudinary: code=cloudinary_not_configured missing=%v", cfg.Cloudinary.MissingRequired())
		}

		logf(logger, "INFO blob: mode=local (auto, no remote store configured)")
		return nil, appcfg.BlobModeLocal, nil

	case appcfg.BlobModeS3:
		if !cfg.S3.IsConfigured() {
			missing := cfg.S3.MissingRequired()
			logf(logger, "FATAL blob.s3: code=s3_config_incomplete missing=%v", missing)
			logf(logger, "FATAL blob.s3: %s", cfg.S3.DiagnosticsSummary())
			return nil, "", fmt.Errorf("BLOB_MODE=s3 requested but missing required config: %s", strings.Join(missing, ", "))
		}

		logf(logger, "INFO blob.s3: code=s3_ready %s", cfg.S3.DiagnosticsSummary())
		store, err := NewS3Store(ctx, cfg.S3)
		if err != nil {
			logf(logger, "FATAL blob.s3: init_failed=%v", err)
			return nil, "", fmt.Errorf("BLOB_MODE=s3 init failed: %w", err)
		}
		logf(logger, "INFO blob: mode=s3 (forced)")
		return store, appcfg.BlobModeS3, nil

	case appcfg.BlobModeCloudinary:
		if missing := cfg.Cloudinary.MissingRequired(); len(missing) > 0 {
			logf(logger, "FATAL blob.cloudinary: code=cloudinary_config_incomplete missing=%v", missing)
			return nil, "", fmt.Errorf("BLOB_MODE=cloudinary requested but missing required config: %s", strings.Join(missing, ", "))
		}
		store, err := NewCloudinaryStore(cfg.Cloudinary)
		if err != nil {
			logf(logger, "FATAL blob.cloudinary: init_failed=%v", err)
			return nil, "", fmt.Errorf("BLOB_MODE=cloudinary init failed: %w", err)
		}
		logf(logger, "INFO blob: mode=cloudinary (forced) cloud=%s folder=%s", cfg.Cloudinary.CloudName, cfg.Cloudinary.Folder)
		return store, appcfg.BlobModeCloudinary, nil

	default:
		return nil, "", fmt.Errorf("unsupported blob mode: %s", mode)
	}
}

func logf(logger Logger, format string, v ...any) {
	if logger == nil {
		return
	}
	logger.Printf(format, v...)
}
