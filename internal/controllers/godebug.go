package controllers

import (
	"net/http/pprof"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/ephemeral-project/backend/internal/router"
)

var _ router.Controller = (*GoDebugController)(nil)

type GoDebugController struct {
}

func (c *GoDebugController) Register(router *mux.Router) {
	zap.L().Warn("enabling /debug/pprof endpoint")
	router.HandleFunc("/debug/pprof/", pprof.Index)
	router.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	// Goroutine dumps are the first thing to look at when a session pump
	// leaks.
	router.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	router.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	router.HandleFunc("/debug/pprof/profile", pprof.Profile)
	router.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
}
