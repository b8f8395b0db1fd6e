package diary

import (
	"context"
	"time"

	"glyko/diary/defs"
	"glyko/diary/pkg/cache"
	"glyko/diary/pkg/healthkit"
	"glyko/diary/pkg/mg"
	"glyko/diary/pkg/ns"
	"glyko/diary/pkg/segment"

	"go.uber.org/zap"
)

type Server struct {
	Store    *mg.MongoStore
	Cache    *cache.Cache
	Remote   *ns.Client
	Diary    *Diary
	Logger   *zap.Logger
	Location *time.Location
	Range    segment.Range

	importPath string
}

func New(config defs.Config) (*Server, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defs.TimeoutInterval)
	defer cancel()

	var err error

	loc := time.Local
	if config.Timezone != "" {
		loc, err = time.LoadLocation(config.Timezone)
		if err != nil {
			return nil, err
		}
	}

	rng, err := segment.NewRange(config.Glucose)
	if err != nil {
		return nil, err
	}

	ms, err := mg.New(ctx, config.Mongo, defs.DefaultDB, config.Logger)
	if err != nil {
		return nil, err
	}

	cachePath := config.Export.CachePath
	if cachePath == "" {
		cachePath = "glyko-cache.db"
	}
	dc, err := cache.Open(cachePath, config.Logger)
	if err != nil {
		return nil, err
	}

	var remote *ns.Client
	if config.Nightscout.URL != "" {
		remote = ns.New(config.Nightscout, config.Logger)
	}

	config.Logger.Debug("finished server setup", zap.Any("config", config))

	return &Server{
		Store:  ms,
		Cache:  dc,
		Remote: remote,
		Diary: &Diary{
			Store:    ms,
			Logger:   config.Logger,
			Location: loc,
			Range:    rng,
		},
		Logger:     config.Logger,
		Location:   loc,
		Range:      rng,
		importPath: config.Export.Path,
	}, nil
}

func (s *Server) ExecuteTask(interval time.Duration, task func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for ; true; <-ticker.C {
		task()
	}
}

func (s *Server) RunImporter() {
	if s.importPath == "" {
		return
	}
	im := Importer{
		Path:   s.importPath,
		Parser: &healthkit.Parser{Logger: s.Logger},
		Cache:  s.Cache,
		Store:  s.Store,
		Logger: s.Logger,
	}
	s.ExecuteTask(defs.ImportInterval, func() {
		if err := im.ImportIfChanged(context.Background()); err != nil {
			s.Logger.Debug("import failed", zap.Error(err))
		}
	})
}

func (s *Server) RunFetcher() {
	if s.Remote == nil {
		return
	}
	f := Fetcher{Source: s.Remote, Store: s.Store, Logger: s.Logger}
	s.ExecuteTask(defs.FetchInterval, func() {
		if err := f.FetchAndLoad(); err != nil {
			s.Logger.Debug("fetch failed", zap.Error(err))
		}
	})
}
