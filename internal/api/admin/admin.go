// Package admin serves the internal operator endpoints of the bot.
package admin

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/massmux/QwenImageBot/internal/api"
	"github.com/massmux/QwenImageBot/internal/errors"
	"github.com/massmux/QwenImageBot/internal/plugin"
	log "github.com/sirupsen/logrus"
)

type Service struct {
	plugin *plugin.Plugin
}

func New(p *plugin.Plugin) Service {
	return Service{
		plugin: p,
	}
}

// Register adds the admin routes to s.
func (s Service) Register(server *api.Server) {
	server.AppendRoute("/admin/status", s.Status, http.MethodGet)
	server.AppendRoute("/admin/account/{id}", s.SwitchAccount, http.MethodPost)
	server.AppendRoute("/admin/enable", s.Enable, http.MethodPost)
	server.AppendRoute("/admin/disable", s.Disable, http.MethodPost)
}

func (s Service) Status(w http.ResponseWriter, r *http.Request) {
	_ = api.WriteResponse(w, api.Response{Status: api.StatusOk, Data: s.plugin.Status()})
}

func (s Service) SwitchAccount(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, fmt.Errorf("invalid account id %q", mux.Vars(r)["id"]))
		return
	}
	if err := s.plugin.Accounts().Switch(n); err != nil {
		code := http.StatusBadRequest
		if c, _ := errors.Code(err); c == errors.UnknownAccountError {
			code = http.StatusNotFound
		}
		api.WriteError(w, code, fmt.Errorf("account %d: %s", n, errors.Message(err)))
		return
	}
	log.Infof("[admin] switched to account %d", n)
	s.Status(w, r)
}

func (s Service) Enable(w http.ResponseWriter, r *http.Request) {
	s.plugin.SetEnabled(true)
	s.Status(w, r)
}

func (s Service) Disable(w http.ResponseWriter, r *http.Request) {
	s.plugin.SetEnabled(false)
	s.Status(w, r)
}
