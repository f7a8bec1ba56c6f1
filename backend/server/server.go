package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/form3tech-oss/jwt-go"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	contextKey "github.com/nuhaid/barakah/backend/server/context_key"
)

// jwtMiddleware is a middleware function that performs JWT validation.
//
// It reads the JWT from the Authorization header of the HTTP request. If a
// JWT is present, it verifies the token's signature and checks if it has
// expired. If the JWT is valid, the function injects the user's ID extracted
// from the JWT into the request's context under contextKey.UserIDKey.
//
// If the JWT has expired but the claims can still be extracted, the function
// also injects the user's ID into the request's context; the token refresh
// endpoint relies on this to identify who is refreshing. In case of any other
// error during JWT parsing, the function injects the error into the request's
// context under contextKey.JwtErrorKey.
//
// The function does not stop the HTTP request processing and always calls the
// next http.Handler. It's up to the handlers to interpret the data in the
// request's context and react accordingly.
func jwtMiddleware(signingKey string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader != "" {
			splitToken := strings.Split(authHeader, "Bearer ")
			if len(splitToken) == 2 {
				token, err := jwt.Parse(splitToken[1], func(token *jwt.Token) (interface{}, error) {
					if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
						return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
					}
					return []byte(signingKey), nil
				})
				if err != nil {
					if err, ok := err.(*jwt.ValidationError); ok && err.Errors == jwt.ValidationErrorExpired {
						if claims, ok := token.Claims.(jwt.MapClaims); ok {
							ctx := context.WithValue(r.Context(), contextKey.UserIDKey, claims["id"])
							r = r.WithContext(ctx)
						}
					} else {
						log.Println("JWT token validation error:", err)
						ctx := context.WithValue(r.Context(), contextKey.JwtErrorKey, err)
						r = r.WithContext(ctx)
					}
				} else if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
					ctx := context.WithValue(r.Context(), contextKey.UserIDKey, claims["id"])
					r = r.WithContext(ctx)
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}

// recoveryMiddleware is a middleware function that recovers from panics and provides a generic error message to the client.
func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("Panic recovered: %s\n", err)
				http.Error(w, "Internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// newRouter builds the REST router with every route wrapped in the JWT and
// recovery middleware.
func newRouter(signingKey string) *mux.Router {
	r := mux.NewRouter()

	wrap := func(h http.HandlerFunc) http.Handler {
		return recoveryMiddleware(jwtMiddleware(signingKey, h))
	}

	r.Handle("/health", wrap(healthHandler)).Methods("GET")

	r.Handle("/auth/signup", wrap(signUpHandler)).Methods("POST")
	r.Handle("/auth/signin", wrap(signInHandler)).Methods("POST")
	r.Handle("/auth/refresh", wrap(refreshHandler)).Methods("POST")
	r.Handle("/auth/signout", wrap(signOutHandler)).Methods("POST")

	r.Handle("/habits", wrap(habitsHandler)).Methods("GET")
	r.Handle("/profile", wrap(profileHandler)).Methods("GET")
	r.Handle("/logs", wrap(logsGetHandler)).Methods("GET")
	r.Handle("/logs", wrap(logsCreateHandler)).Methods("POST")
	r.Handle("/logs", wrap(logsDeleteHandler)).Methods("DELETE")
	r.Handle("/achievements", wrap(achievementsHandler)).Methods("GET")

	r.Handle("/rpc/increment_points", wrap(incrementPointsHandler)).Methods("POST")
	r.Handle("/rpc/update_streak", wrap(updateStreakHandler)).Methods("POST")
	r.Handle("/rpc/check_achievements", wrap(checkAchievementsHandler)).Methods("POST")

	return r
}

// Start initializes and starts the REST server. Runs on localhost:8080 by default.
// The function requires a serverURL (the URL where the server must be deployed) and the JWT signing key.
func Start(serverURL, signingKey string) {
	r := newRouter(signingKey)

	// Apply the CORS middleware to the router
	corsOrigins := handlers.AllowedOrigins([]string{"*"})
	corsMethods := handlers.AllowedMethods([]string{"GET", "HEAD", "POST", "PUT", "DELETE", "OPTIONS"})
	corsHeaders := handlers.AllowedHeaders([]string{"X-Requested-With", "Content-Type", "Authorization"})

	corsRouter := handlers.CORS(corsOrigins, corsMethods, corsHeaders)(r)

	// Apply the logging middleware
	loggingRouter := handlers.LoggingHandler(os.Stdout, corsRouter)

	u, err := url.Parse(serverURL)
	if err != nil {
		panic(err)
	}

	server := &http.Server{
		Handler:      loggingRouter,
		Addr:         u.Host,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}

	log.Fatal(server.ListenAndServe())
}
