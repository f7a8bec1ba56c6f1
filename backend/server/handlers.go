package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/nuhaid/barakah/backend/queue"
	"github.com/nuhaid/barakah/backend/server/auth"
	contextKey "github.com/nuhaid/barakah/backend/server/context_key"
	cacheStorage "github.com/nuhaid/barakah/backend/storage/cache"
	storage "github.com/nuhaid/barakah/backend/storage/persistent"
	"github.com/nuhaid/barakah/lib/utils"
	"github.com/nuhaid/barakah/models"
)

// store is a global variable that holds an interface to the storage system (database).
var store storage.StorageInterface

// profileCache holds the cache used for profile reads. May be nil, in which
// case profile reads always hit the database.
var profileCache cacheStorage.CacheInterface

// unlockQueue carries achievement-unlock notifications. May be nil, in which
// case unlocks are recorded but not announced.
var unlockQueue *queue.Queue

// profileCacheTTL keeps cached profiles short-lived; every mutation also
// invalidates eagerly, so the TTL only covers writes from other instances.
const profileCacheTTL = 30 * time.Second

// Init wires the request handlers to their backing services. The cache and
// queue may be nil.
func Init(s storage.StorageInterface, cache cacheStorage.CacheInterface, q *queue.Queue) {
	store = s
	profileCache = cache
	unlockQueue = q
}

// respondJSON writes v as the JSON response body with the given status.
func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			log.Printf("failed to encode response: %v", err)
		}
	}
}

// respondError writes an error response in the {"error": ...} shape every
// client of this server expects.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// requireUser extracts the authenticated user's ID from the request context,
// where the JWT middleware placed it.
func requireUser(r *http.Request) (primitive.ObjectID, error) {
	if jwtErr, ok := r.Context().Value(contextKey.JwtErrorKey).(error); ok && jwtErr != nil {
		return primitive.NilObjectID, errors.New("invalid token")
	}

	id, ok := r.Context().Value(contextKey.UserIDKey).(string)
	if !ok || id == "" {
		return primitive.NilObjectID, errors.New("authentication required")
	}

	userID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, errors.New("invalid token")
	}

	return userID, nil
}

// decodeBody decodes the JSON request body into v.
func decodeBody(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.New("invalid request body")
	}
	return nil
}

// invalidateProfile drops the cached profile for a user after a mutation.
func invalidateProfile(r *http.Request, userID primitive.ObjectID) {
	if profileCache == nil {
		return
	}
	if err := profileCache.Delete(r.Context(), "profile_"+userID.Hex()); err != nil {
		log.Printf("failed to invalidate profile cache: %v", err)
	}
}

// healthHandler reports that the server is reachable. The offline sync
// watcher in the client polls this endpoint as its connectivity probe.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func signUpHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	token, refreshToken, err := auth.SignUp(body.Username, body.Email, body.Password)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"token":        token,
		"refreshToken": refreshToken,
	})
}

func signInHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	token, refreshToken, err := auth.SignIn(body.Username, body.Password)
	if err != nil {
		respondError(w, http.StatusUnauthorized, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"token":        token,
		"refreshToken": refreshToken,
	})
}

// refreshHandler exchanges a valid refresh token for a fresh token pair.
// The expired access token in the Authorization header supplies the user's
// ID; the middleware still extracts claims from expired tokens.
func refreshHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUser(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, err.Error())
		return
	}

	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := decodeBody(r, &body); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	token, refreshToken, err := auth.RefreshToken(userID.Hex(), body.RefreshToken)
	if err != nil {
		respondError(w, http.StatusUnauthorized, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"token":        token,
		"refreshToken": refreshToken,
	})
}

// signOutHandler ends a session. Tokens are stateless, so there is nothing
// to revoke server-side; the client drops its stored tokens.
func signOutHandler(w http.ResponseWriter, r *http.Request) {
	if _, err := requireUser(r); err != nil {
		respondError(w, http.StatusUnauthorized, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func habitsHandler(w http.ResponseWriter, r *http.Request) {
	if _, err := requireUser(r); err != nil {
		respondError(w, http.StatusUnauthorized, err.Error())
		return
	}

	habits, err := store.ListHabits(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list habits")
		return
	}

	respondJSON(w, http.StatusOK, habits)
}

func profileHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUser(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, err.Error())
		return
	}

	cacheKey := "profile_" + userID.Hex()
	if profileCache != nil {
		if cached, err := profileCache.Get(r.Context(), cacheKey); err == nil && cached != nil {
			respondJSON(w, http.StatusOK, cached)
			return
		}
	}

	user, err := store.FindUser(r.Context(), bson.M{"_id": userID})
	if err != nil {
		respondError(w, http.StatusNotFound, "user not found")
		return
	}

	profile := models.Profile{
		UserID:   user.ID.Hex(),
		Username: user.Username,
		Points:   user.Points,
		Streak:   user.Streak,
	}

	if profileCache != nil {
		if err := profileCache.Set(r.Context(), cacheKey, profile, profileCacheTTL); err != nil {
			log.Printf("failed to cache profile: %v", err)
		}
	}

	respondJSON(w, http.StatusOK, profile)
}

func logsGetHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUser(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, err.Error())
		return
	}

	date := r.URL.Query().Get("date")
	if !utils.ValidateDate(date) {
		respondError(w, http.StatusBadRequest, "invalid date")
		return
	}

	logs, err := store.FindHabitLogs(r.Context(), bson.M{"user_id": userID, "date": date})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list logs")
		return
	}
	if logs == nil {
		logs = []models.HabitLog{}
	}

	respondJSON(w, http.StatusOK, logs)
}

// logPayload is the body shape shared by log creation and deletion.
type logPayload struct {
	HabitID string `json:"habitId"`
	Date    string `json:"date"`
}

func (p *logPayload) parse(userID primitive.ObjectID) (*models.HabitLog, error) {
	habitID, err := primitive.ObjectIDFromHex(p.HabitID)
	if err != nil {
		return nil, errors.New("invalid habit id")
	}
	if !utils.ValidateDate(p.Date) {
		return nil, errors.New("invalid date")
	}
	return &models.HabitLog{
		UserID:  userID,
		HabitID: habitID,
		Date:    p.Date,
	}, nil
}

func logsCreateHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUser(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, err.Error())
		return
	}

	var body logPayload
	if err := decodeBody(r, &body); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	habitLog, err := body.parse(userID)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	habitLog.CreatedAt = time.Now().UTC()

	habitLog, err = store.AddHabitLog(r.Context(), habitLog)
	if err != nil {
		if errors.Is(err, models.ErrDuplicateLog) {
			respondError(w, http.StatusConflict, "duplicate log")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to create log")
		return
	}

	invalidateProfile(r, userID)
	respondJSON(w, http.StatusCreated, habitLog)
}

func logsDeleteHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUser(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, err.Error())
		return
	}

	var body logPayload
	if err := decodeBody(r, &body); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	habitLog, err := body.parse(userID)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Deleting a log that is already gone is a success: the client replays
	// queued uncompletions that may have been applied elsewhere already.
	_, err = store.DeleteHabitLog(r.Context(), bson.M{
		"user_id":  habitLog.UserID,
		"habit_id": habitLog.HabitID,
		"date":     habitLog.Date,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to delete log")
		return
	}

	invalidateProfile(r, userID)
	w.WriteHeader(http.StatusNoContent)
}

// achievementsHandler lists every achievement definition with the user's
// earned markers. The name and description of secret achievements stay
// hidden until earned.
func achievementsHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUser(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, err.Error())
		return
	}

	achievements, err := store.ListAchievements(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list achievements")
		return
	}

	earnedRecords, err := store.FindUserAchievements(r.Context(), bson.M{"user_id": userID})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list achievements")
		return
	}
	earnedAt := make(map[primitive.ObjectID]time.Time, len(earnedRecords))
	for _, record := range earnedRecords {
		earnedAt[record.AchievementID] = record.EarnedAt
	}

	statuses := make([]models.AchievementStatus, 0, len(achievements))
	for _, a := range achievements {
		status := models.AchievementStatus{Achievement: a}
		if t, ok := earnedAt[a.ID]; ok {
			status.Earned = true
			status.EarnedAt = &t
		} else if a.Secret {
			status.Name = "???"
			status.Description = "???"
		}
		statuses = append(statuses, status)
	}

	respondJSON(w, http.StatusOK, statuses)
}

func incrementPointsHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUser(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, err.Error())
		return
	}

	var body struct {
		Amount int `json:"amount"`
	}
	if err := decodeBody(r, &body); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := store.IncrementPoints(r.Context(), userID.Hex(), body.Amount)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to update points")
		return
	}

	invalidateProfile(r, userID)
	respondJSON(w, http.StatusOK, map[string]int{"points": user.Points})
}

// updateStreakHandler recomputes the user's streak from the full log
// history. The streak is always derived server-side so that replayed
// offline actions cannot drift it.
func updateStreakHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUser(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, err.Error())
		return
	}

	logs, err := store.FindHabitLogs(r.Context(), bson.M{"user_id": userID})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to update streak")
		return
	}

	dates := make([]string, 0, len(logs))
	for _, habitLog := range logs {
		dates = append(dates, habitLog.Date)
	}
	streak := CurrentStreak(dates, time.Now())

	if err := store.SetStreak(r.Context(), userID.Hex(), streak); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to update streak")
		return
	}

	invalidateProfile(r, userID)
	respondJSON(w, http.StatusOK, map[string]int{"streak": streak})
}

func checkAchievementsHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUser(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, err.Error())
		return
	}

	unlocked, err := EvaluateAchievements(r.Context(), store, unlockQueue, userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to check achievements")
		return
	}
	if unlocked == nil {
		unlocked = []models.Achievement{}
	}

	respondJSON(w, http.StatusOK, map[string][]models.Achievement{"unlocked": unlocked})
}
