package main

import (
	"flag"
	"os"

	"glyko/diary"
	"glyko/diary/defs"
	dhttp "glyko/diary/pkg/http"
	"glyko/diary/pkg/render"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var configFile string

func init() {
	flag.StringVar(&configFile, "f", "config.yaml", "config file")
	flag.Parse()
}

func main() {
	logger, _ := zap.NewDevelopment()
	config := defs.Config{Logger: logger}

	file, err := os.ReadFile(configFile)
	if err != nil {
		panic(err)
	}

	if err = yaml.Unmarshal(file, &config); err != nil {
		panic(err)
	}

	logger.Debug("loaded config file", zap.String("file", configFile))

	s, err := diary.New(config)
	if err != nil {
		panic(err)
	}

	go s.RunImporter()
	go s.RunFetcher()

	hs := dhttp.New(
		s.Diary,
		s.Store,
		render.Plot{Width: 1280, Height: 720, Range: s.Range},
		logger,
	)

	addr := config.Server.Addr
	if addr == "" {
		addr = ":4242"
	}
	if err := hs.Run(addr); err != nil {
		panic(err)
	}
}
