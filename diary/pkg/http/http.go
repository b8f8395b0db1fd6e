package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"glyko/diary"
	"glyko/diary/defs"
	"glyko/diary/pkg/mg"
	"glyko/diary/pkg/render"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Store interface {
	mg.GlucoseStore
	mg.InsulinStore
	mg.CarbStore
}

type Server struct {
	Diary  *diary.Diary
	Store  Store
	Plot   render.Plot
	Logger *zap.Logger
}

func New(d *diary.Diary, store Store, plot render.Plot, logger *zap.Logger) *Server {
	return &Server{
		Diary:  d,
		Store:  store,
		Plot:   plot,
		Logger: logger,
	}
}

func (s *Server) Run(addr string) error {
	return s.Handler().Run(addr)
}

func (s *Server) Handler() *gin.Engine {
	r := gin.Default()

	api := r.Group("/api/v1")
	api.GET("/glucose", s.getGlucose)
	api.GET("/diary", s.getDiary)
	api.GET("/plot.png", s.getPlot)
	api.POST("/insulin", s.postInsulin)
	api.POST("/carbs", s.postCarbs)

	return r
}

// window parses the start/end unix-second query params shared by all
// read routes. Omitting both falls back to the most recent days.
func window(c *gin.Context) (time.Time, time.Time, bool) {
	if c.Query("start") == "" && c.Query("end") == "" {
		end := time.Now()
		return end.Add(defs.DefaultWindow), end, true
	}

	startUnix, err := strconv.Atoi(c.DefaultQuery("start", ""))
	if err != nil {
		c.String(http.StatusBadRequest, "expected unix timestamp for start")
		return time.Time{}, time.Time{}, false
	}

	endUnix, err := strconv.Atoi(c.DefaultQuery("end", ""))
	if err != nil {
		c.String(http.StatusBadRequest, "expected unix timestamp for end")
		return time.Time{}, time.Time{}, false
	}

	return time.Unix(int64(startUnix), 0), time.Unix(int64(endUnix), 0), true
}

func (s *Server) getGlucose(c *gin.Context) {
	start, end, ok := window(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), defs.TimeoutInterval)
	defer cancel()

	glucose, err := s.Store.ReadGlucose(ctx, start, end)
	if err != nil {
		c.String(http.StatusInternalServerError, "something went wrong reading glucose")
		return
	}

	c.JSON(http.StatusOK, glucose)
}

func (s *Server) getDiary(c *gin.Context) {
	start, end, ok := window(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), defs.TimeoutInterval)
	defer cancel()

	view, err := s.Diary.View(ctx, start, end)
	if err != nil {
		s.Logger.Debug("unable to build view", zap.Error(err))
		c.String(http.StatusInternalServerError, "something went wrong building the diary view")
		return
	}

	c.JSON(http.StatusOK, view)
}

func (s *Server) getPlot(c *gin.Context) {
	start, end, ok := window(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), defs.TimeoutInterval)
	defer cancel()

	glucose, err := s.Store.ReadGlucose(ctx, start, end)
	if err != nil {
		c.String(http.StatusInternalServerError, "something went wrong reading glucose")
		return
	}

	png, err := s.Plot.Render(s.Diary.Range.Build(glucose), start, end)
	if err != nil {
		s.Logger.Debug("unable to render plot", zap.Error(err))
		c.String(http.StatusInternalServerError, "something went wrong rendering the plot")
		return
	}

	c.Data(http.StatusOK, "image/png", png)
}

type insulinRequest struct {
	Units  float64 `json:"units" binding:"required,gt=0"`
	Reason string  `json:"reason" binding:"required,oneof=bolus basal"`
	Time   *int64  `json:"time"`
}

func (s *Server) postInsulin(c *gin.Context) {
	var req insulinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.String(http.StatusBadRequest, "invalid insulin entry: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), defs.TimeoutInterval)
	defer cancel()

	in := defs.Insulin{
		Time:   entryTime(req.Time),
		Units:  req.Units,
		Reason: req.Reason,
	}
	if _, err := s.Store.WriteInsulin(ctx, &in); err != nil {
		c.String(http.StatusInternalServerError, "something went wrong saving insulin")
		return
	}

	c.JSON(http.StatusCreated, in)
}

type carbRequest struct {
	Grams float64 `json:"grams" binding:"required,gt=0"`
	Time  *int64  `json:"time"`
}

func (s *Server) postCarbs(c *gin.Context) {
	var req carbRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.String(http.StatusBadRequest, "invalid carb entry: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), defs.TimeoutInterval)
	defer cancel()

	carb := defs.Carb{
		Time:  entryTime(req.Time),
		Grams: req.Grams,
	}
	if _, err := s.Store.WriteCarbs(ctx, &carb); err != nil {
		c.String(http.StatusInternalServerError, "something went wrong saving carbs")
		return
	}

	c.JSON(http.StatusCreated, carb)
}

func entryTime(unix *int64) time.Time {
	if unix != nil {
		return time.Unix(*unix, 0)
	}
	return time.Now()
}
