package media_test

import (
	"context"
	"fmt"

	"github.com/bitrise-io/go-utils/v2/env"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/gracechurch/mediakit/media"
)

func Example() {
	logger := log.NewLogger()
	ctx := context.Background()

	config, err := media.ConfigFromEnv(env.NewRepository())
	if err != nil {
		logger.Errorf(err.Error())
		return
	}

	service, err := media.New(ctx, config, logger)
	if err != nil {
		logger.Errorf(err.Error())
		return
	}
	defer func() {
		if err := service.Close(); err != nil {
			logger.Warnf(err.Error())
		}
	}()

	file, closer, err := media.OpenFileSource("easter-service.mp4", "")
	if err != nil {
		logger.Errorf(err.Error())
		return
	}
	defer closer.Close()

	result, err := service.Upload(ctx, "media", "sermons", file, func(percent float64) {
		logger.Printf("%.0f%%", percent)
	})
	if err != nil {
		logger.Errorf("Upload failed: %s", err)
		return
	}

	fmt.Println(service.PublicURL("media", result.Path, &media.Transform{Width: 640, Format: media.FormatWebP}))
}
