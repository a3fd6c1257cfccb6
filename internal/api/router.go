package api

import (
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func NewRouter(apiHandler *APIHandler, logger *log.Logger, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  logger.StandardLog(log.StandardLogOptions{ForceLevel: log.InfoLevel}),
		NoColor: true,
	}))
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	r.Get("/healthcheck", apiHandler.HealthcheckHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/test", apiHandler.TestHandler)

		r.Route("/users", func(r chi.Router) {
			r.Post("/", apiHandler.CreateUserHandler)
			r.Get("/{userID}", apiHandler.GetUserHandler)
			r.Get("/{userID}/purchases", apiHandler.UserPurchasesHandler)
			r.Get("/{userID}/content", apiHandler.UserContentHandler)
			r.Get("/{userID}/total_purchased", apiHandler.UserTotalPurchasedHandler)
			r.Get("/{userID}/total_sold", apiHandler.UserTotalSoldHandler)
		})

		r.Route("/content", func(r chi.Router) {
			r.Post("/add_text_completion", apiHandler.AddTextContentHandler)
			r.Post("/add_image_generation", apiHandler.AddImageContentHandler)
			r.Post("/search", apiHandler.SearchContentHandler)
			r.Get("/get_content/{contentID}", apiHandler.GetContentHandler)
			r.Get("/get_n_items", apiHandler.GetNItemsHandler)
			r.Get("/total_sold/{contentID}", apiHandler.ContentTotalSoldHandler)
			r.Post("/purchase", apiHandler.PurchaseHandler)
			r.Get("/list_model_names", apiHandler.ListModelNamesHandler)

			// Model tests
			r.Post("/test_chat_completion", apiHandler.TestChatCompletionHandler)
			r.Post("/test_image_gen", apiHandler.TestImageGenHandler)
		})
	})

	return r
}
