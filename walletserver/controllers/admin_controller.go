package controllers

// AdminController drives the demo chain stub directly: height, per-name
// auction-open height, fee-rate estimate. A live Handshake node owns these
// in production; since that collaborator is external to this engine (see
// core/chainstub.go) and no such client exists here, these endpoints let an
// operator walk the demo chain through OPEN -> BID -> REVEAL -> ... without
// a real network, mirroring cmd/cli/name_admin.go.

import (
	"encoding/json"
	"net/http"

	"github.com/namebasehq/hsd/core"
	"github.com/namebasehq/hsd/walletserver/services"
)

type AdminController struct {
	rt *services.Runtime
}

func NewAdminController(rt *services.Runtime) *AdminController { return &AdminController{rt: rt} }

func (ac *AdminController) Height(w http.ResponseWriter, r *http.Request) {
	h, err := ac.rt.Chain.Height(r.Context())
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint32{"height": h})
}

func (ac *AdminController) SetHeight(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Height uint32 `json:"height"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	err := ac.rt.Mutate(func() error {
		ac.rt.Chain.SetHeight(req.Height)
		return nil
	})
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (ac *AdminController) OpenName(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name   string `json:"name"`
		Height uint32 `json:"height"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	if req.Name == "" {
		writeErr(w, http.StatusBadRequest, errRequired("name"))
		return
	}
	err := ac.rt.Mutate(func() error {
		ac.rt.Chain.PutNameState(&core.NameState{NameHash: core.NameHash(req.Name), Height: req.Height})
		return nil
	})
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (ac *AdminController) SetFeeRate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SatPerKB uint64 `json:"sat_per_kb"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	err := ac.rt.Mutate(func() error {
		ac.rt.Chain.SetFeeRate(req.SatPerKB)
		return nil
	})
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
