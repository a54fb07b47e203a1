package routes

// Register wires every controller onto a chi router. go-chi/chi/v5 replaces
// the teacher's gorilla/mux — the rest of the pack (and the teacher's own
// go.mod) reaches for chi directly, and mux was only ever used by this one
// legacy handler set.

import (
	"github.com/go-chi/chi/v5"

	"github.com/namebasehq/hsd/walletserver/controllers"
	"github.com/namebasehq/hsd/walletserver/middleware"
)

func Register(r chi.Router, wc *controllers.WalletController, nc *controllers.NameController, ac *controllers.AdminController) {
	r.Use(middleware.Logger)

	r.Route("/api/wallet", func(r chi.Router) {
		r.Post("/create", wc.Create)
		r.Post("/import", wc.Import)
		r.Post("/address", wc.Address)
		r.Post("/sign-digest", wc.SignDigest)
	})

	r.Route("/api/name", func(r chi.Router) {
		r.Post("/{name}/open", nc.Open)
		r.Post("/open-all", nc.OpenMany)
		r.Post("/{name}/bid", nc.Bid)
		r.Post("/bid-all", nc.BidMany)
		r.Post("/{name}/reveal", nc.Reveal)
		r.Post("/reveal-all", nc.RevealAll)
		r.Post("/{name}/redeem", nc.Redeem)
		r.Post("/redeem-all", nc.RedeemAll)
		r.Post("/{name}/finish", nc.Finish)
		r.Post("/finish-all", nc.FinishAll)
		r.Post("/{name}/update", nc.Update)
		r.Post("/{name}/renew", nc.Renew)
		r.Post("/{name}/transfer", nc.Transfer)
		r.Post("/{name}/cancel", nc.Cancel)
		r.Post("/{name}/finalize", nc.Finalize)
		r.Post("/{name}/revoke", nc.Revoke)
		r.Post("/send", nc.Send)
		r.Post("/cache/{action}/clear", nc.ClearCache)
		r.Post("/cache/{action}/clear/{key}", nc.ClearCacheKey)
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Get("/height", ac.Height)
		r.Post("/height", ac.SetHeight)
		r.Post("/name-state", ac.OpenName)
		r.Post("/fee-rate", ac.SetFeeRate)
	})
}
