// internal/server/router.go
//
// 路由註冊與中介層。所有 API 同時掛在根路徑與 /api/v1 下。
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Router 建立並回傳整個 HTTP 處理鏈。
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false, // must be false when using "*"
		MaxAge:           300,
	}))

	r.Method(http.MethodGet, "/metrics", s.Metrics)

	r.Route("/api/v1", s.routes)
	s.routes(r)
	return r
}

func (s *Server) routes(r chi.Router) {
	r.Get("/health", s.health)
	r.Get("/customers", s.listCustomers)
	r.Post("/customers", s.addCustomer)

	r.Route("/customers/{cid}", func(r chi.Router) {
		r.Get("/accounts", s.listAccounts)
		r.Post("/accounts", s.addAccount)
		r.Post("/transfer", s.transfer)

		r.Route("/accounts/{num}", func(r chi.Router) {
			r.Get("/", s.getAccount)
			r.Get("/transactions", s.transactions)
			r.Post("/deposit", s.deposit)
			r.Post("/withdraw", s.withdraw)
		})
	})
}

// requestLogger 以 zap 記錄每個請求的方法、路徑、狀態碼與耗時。
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}
