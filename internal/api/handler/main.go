package handler

import (
	"net/http"

	"grammargame/internal/config"
	"grammargame/internal/services"

	"github.com/hiendaovinh/toolkit/pkg/httpx-echo"
	"github.com/labstack/echo-contrib/pprof"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/samber/do"
)

type Config struct {
	Container *do.Injector
	Mode      string
	Origins   []string
}

func New(cfg *Config) (http.Handler, error) {
	r := echo.New()
	r.Pre(middleware.RemoveTrailingSlash())
	if cfg.Mode == config.ModeDebug {
		r.Debug = true
		pprof.Register(r)
	}

	r.JSONSerializer = httpx.SegmentJSONSerializer{}
	r.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "${time_rfc3339}\t${method}\t${uri}\t${status}\t${latency_human}\n",
	}))
	r.Use(middleware.Recover())

	r.GET("", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	routesAPIv1 := r.Group("/api/v1")
	{
		authentication, err := do.Invoke[*services.Authentication](cfg.Container)
		if err != nil {
			return nil, err
		}
		cors := middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:     cfg.Origins,
			AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
			AllowCredentials: true,
			MaxAge:           60 * 60,
		})

		routesAPIv1.Use(cors)

		routesAPIv1Auth := routesAPIv1.Group("/auth")
		{
			a := groupAuth{cfg.Container}
			routesAPIv1Auth.POST("/register", a.Register)
			routesAPIv1Auth.POST("/login", a.Login)
		}

		routesAPIv1.Use(Authn(authentication)) // Authn will NOT terminate unauthenticated request.
		routesAPIv1.GET("", Hello)

		u := groupUser{cfg.Container}
		routesAPIv1.GET("/user/me", u.Me)

		routesAPIv1Session := routesAPIv1.Group("/sessions")
		{
			s := groupSession{cfg.Container}
			routesAPIv1Session.POST("", s.Create)
			routesAPIv1Session.GET("", s.List)
			routesAPIv1Session.GET("/last", s.Last)
			routesAPIv1Session.GET("/:id", s.Show)
			routesAPIv1Session.POST("/:id/progress", s.Progress)
			routesAPIv1Session.POST("/:id/complete", s.Complete)
		}

		l := groupLeaderboard{cfg.Container}
		routesAPIv1.GET("/leaderboard/:board", l.GetLeaderboard)
	}

	return r, nil
}

func Hello(c echo.Context) error {
	return httpx.RestAbort(c, "hello world", nil)
}
