package controllers

// NameController fronts core.Dispatcher over HTTP, one handler per
// operation, mirroring cmd/cli/name_*.go's command-per-operation layout.
// Every mutating call runs inside rt.Mutate so a concurrent request can't
// interleave with the subsequent on-disk persist, and every successful
// mutation is flushed to disk before the response is written.

import (
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/namebasehq/hsd/core"
	"github.com/namebasehq/hsd/walletserver/services"
)

type NameController struct {
	rt *services.Runtime
}

func NewNameController(rt *services.Runtime) *NameController { return &NameController{rt: rt} }

type resultDTO struct {
	Hash    string `json:"tx_hash"`
	Inputs  int    `json:"inputs"`
	Outputs int    `json:"outputs"`
}

func toResultDTO(res *core.Result) resultDTO {
	return resultDTO{Hash: res.Hash.Hex(), Inputs: len(res.Tx.Inputs), Outputs: len(res.Tx.Outputs)}
}

type rejectedDTO struct {
	Name      string `json:"name"`
	Remaining int    `json:"remaining"`
	Err       string `json:"error"`
}

type batchResultDTO struct {
	Result   *resultDTO    `json:"result,omitempty"`
	Rejected []rejectedDTO `json:"rejected,omitempty"`
}

func toBatchResultDTO(res *core.Result, rejected []core.RejectedDomain) batchResultDTO {
	out := batchResultDTO{}
	if res != nil {
		dto := toResultDTO(res)
		out.Result = &dto
	}
	for _, r := range rejected {
		out.Rejected = append(out.Rejected, rejectedDTO{Name: r.Name, Remaining: r.Remaining, Err: r.Err.Error()})
	}
	return out
}

// decodeActionBody reads the common ActionParams plus any action-specific
// fields (extra, or nil) out of the request body in one pass: both are
// independently unmarshalled from the same raw bytes since ActionParams is
// never embedded in the per-action request shape.
func decodeActionBody(r *http.Request, extra any) (services.ActionParams, error) {
	var params services.ActionParams
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return params, err
	}
	if len(body) == 0 {
		return params, nil
	}
	if err := json.Unmarshal(body, &params); err != nil {
		return params, err
	}
	if extra != nil {
		if err := json.Unmarshal(body, extra); err != nil {
			return params, err
		}
	}
	return params, nil
}

// mutate runs fn under the runtime lock and persists on success, writing
// the resulting Result (or error) as the HTTP response.
func (nc *NameController) mutate(w http.ResponseWriter, fn func() (*core.Result, error)) {
	var res *core.Result
	err := nc.rt.Mutate(func() error {
		var innerErr error
		res, innerErr = fn()
		return innerErr
	})
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	dto := toResultDTO(res)
	writeJSON(w, http.StatusOK, dto)
}

func (nc *NameController) mutateBatch(w http.ResponseWriter, fn func() (*core.Result, []core.RejectedDomain, error)) {
	var res *core.Result
	var rejected []core.RejectedDomain
	err := nc.rt.Mutate(func() error {
		var innerErr error
		res, rejected, innerErr = fn()
		return innerErr
	})
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, toBatchResultDTO(res, rejected))
}

func (nc *NameController) Open(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	params, err := decodeActionBody(r, nil)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	nc.mutate(w, func() (*core.Result, error) {
		return nc.rt.Disp.Open(r.Context(), name, params.Account, params.Request())
	})
}

func (nc *NameController) Bid(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var extra struct {
		Value  uint64 `json:"value"`
		Lockup uint64 `json:"lockup"`
		To     string `json:"to"`
	}
	params, err := decodeActionBody(r, &extra)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	var addr core.Address
	if extra.To != "" {
		addr, err = core.ParseAddress(extra.To)
	} else {
		addr, err = nc.rt.Wallet.NextReceiveAddress(params.Account)
	}
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	nc.mutate(w, func() (*core.Result, error) {
		return nc.rt.Disp.Bid(r.Context(), name, extra.Value, extra.Lockup, params.Account, addr, params.Request())
	})
}

func (nc *NameController) Reveal(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	params, err := decodeActionBody(r, nil)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	nc.mutate(w, func() (*core.Result, error) {
		return nc.rt.Disp.Reveal(r.Context(), name, params.Account, params.Request())
	})
}

func (nc *NameController) RevealAll(w http.ResponseWriter, r *http.Request) {
	params, err := decodeActionBody(r, nil)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	nc.mutateBatch(w, func() (*core.Result, []core.RejectedDomain, error) {
		return nc.rt.Disp.RevealAll(r.Context(), params.Account, params.Request())
	})
}

func (nc *NameController) Redeem(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	params, err := decodeActionBody(r, nil)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	nc.mutate(w, func() (*core.Result, error) {
		return nc.rt.Disp.Redeem(r.Context(), name, params.Account, params.Request())
	})
}

func (nc *NameController) RedeemAll(w http.ResponseWriter, r *http.Request) {
	params, err := decodeActionBody(r, nil)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	nc.mutateBatch(w, func() (*core.Result, []core.RejectedDomain, error) {
		return nc.rt.Disp.RedeemAll(r.Context(), params.Account, params.Request())
	})
}

func (nc *NameController) Update(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var extra struct {
		Resource string `json:"resource_hex"`
	}
	params, err := decodeActionBody(r, &extra)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	resource, err := hex.DecodeString(extra.Resource)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	nc.mutate(w, func() (*core.Result, error) {
		return nc.rt.Disp.Update(r.Context(), name, resource, params.Account, params.Request())
	})
}

func (nc *NameController) Renew(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	params, err := decodeActionBody(r, nil)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	nc.mutate(w, func() (*core.Result, error) {
		return nc.rt.Disp.Renew(r.Context(), name, params.Account, params.Request())
	})
}

func (nc *NameController) Transfer(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var extra struct {
		To        string `json:"to"`
		ToVersion uint8  `json:"to_version"`
	}
	params, err := decodeActionBody(r, &extra)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	if extra.To == "" {
		writeErr(w, http.StatusBadRequest, errRequired("to"))
		return
	}
	addr, err := core.ParseAddress(extra.To)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	nc.mutate(w, func() (*core.Result, error) {
		return nc.rt.Disp.Transfer(r.Context(), name, extra.ToVersion, addr, params.Account, params.Request())
	})
}

func (nc *NameController) Cancel(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	params, err := decodeActionBody(r, nil)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	nc.mutate(w, func() (*core.Result, error) {
		return nc.rt.Disp.Cancel(r.Context(), name, params.Account, params.Request())
	})
}

func (nc *NameController) Finalize(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	params, err := decodeActionBody(r, nil)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	nc.mutate(w, func() (*core.Result, error) {
		return nc.rt.Disp.Finalize(r.Context(), name, params.Account, params.Request())
	})
}

func (nc *NameController) Revoke(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	params, err := decodeActionBody(r, nil)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	nc.mutate(w, func() (*core.Result, error) {
		return nc.rt.Disp.Revoke(r.Context(), name, params.Account, params.Request())
	})
}

func (nc *NameController) Finish(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var extra struct {
		Resource string `json:"resource_hex"`
	}
	params, err := decodeActionBody(r, &extra)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	var resource []byte
	if extra.Resource != "" {
		resource, err = hex.DecodeString(extra.Resource)
		if err != nil {
			writeErr(w, http.StatusBadRequest, err)
			return
		}
	}
	nc.mutate(w, func() (*core.Result, error) {
		return nc.rt.Disp.Finish(r.Context(), name, resource, params.Account, params.Request())
	})
}

func (nc *NameController) FinishAll(w http.ResponseWriter, r *http.Request) {
	params, err := decodeActionBody(r, nil)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	nc.mutateBatch(w, func() (*core.Result, []core.RejectedDomain, error) {
		return nc.rt.Disp.FinishAll(r.Context(), params.Account, params.Request())
	})
}

func (nc *NameController) OpenMany(w http.ResponseWriter, r *http.Request) {
	var extra struct {
		Names []string `json:"names"`
	}
	params, err := decodeActionBody(r, &extra)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	nc.mutate(w, func() (*core.Result, error) {
		return nc.rt.Disp.OpenMany(r.Context(), extra.Names, params.Account, params.Request())
	})
}

func (nc *NameController) BidMany(w http.ResponseWriter, r *http.Request) {
	var extra struct {
		Bids []struct {
			Name   string `json:"name"`
			Value  uint64 `json:"value"`
			Lockup uint64 `json:"lockup"`
		} `json:"bids"`
	}
	params, err := decodeActionBody(r, &extra)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	bids := make([]core.BidRequest, len(extra.Bids))
	for i, b := range extra.Bids {
		bids[i] = core.BidRequest{Name: b.Name, Value: b.Value, Lockup: b.Lockup}
	}
	nc.mutate(w, func() (*core.Result, error) {
		return nc.rt.Disp.BidMany(r.Context(), bids, params.Account, params.Request())
	})
}

func (nc *NameController) Send(w http.ResponseWriter, r *http.Request) {
	var extra struct {
		To    string `json:"to"`
		Value uint64 `json:"value"`
	}
	params, err := decodeActionBody(r, &extra)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	if extra.To == "" {
		writeErr(w, http.StatusBadRequest, errRequired("to"))
		return
	}
	addr, err := core.ParseAddress(extra.To)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	nc.mutate(w, func() (*core.Result, error) {
		return nc.rt.Disp.Send(r.Context(), addr, extra.Value, params.Account, params.Request())
	})
}

func (nc *NameController) ClearCache(w http.ResponseWriter, r *http.Request) {
	action := chi.URLParam(r, "action")
	nc.rt.Disp.ClearCache(action)
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (nc *NameController) ClearCacheKey(w http.ResponseWriter, r *http.Request) {
	action := chi.URLParam(r, "action")
	key := chi.URLParam(r, "key")
	nc.rt.Disp.ClearCacheKey(action, key)
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}
