package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/form3tech-oss/jwt-go"
	"github.com/zalando/go-keyring"

	"github.com/nuhaid/barakah/lib/utils"
)

// jwtSigningKey is used to verify JWT tokens issued by the server.
var jwtSigningKey string

// KeyringKey is used to store and retrieve the JWT token from the system keyring.
var KeyringKey string

// RefreshKeyringKey is used to store and retrieve the refresh token from the system keyring.
var RefreshKeyringKey string

// ServerURL is the URL of the server the client is connecting to.
var ServerURL string

// httpClient is the HTTP client used to make requests to the server.
var httpClient = &http.Client{}

// KeyringService is the name of the service in the system keyring where the JWT token and refresh token are stored.
const KeyringService = "Barakah"

// TokenResult is a struct that represents the token pair returned by the
// auth endpoints, such as SignIn or SignUp.
type TokenResult struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

// InitAuthClient initializes the signing key, keyring keys and server URL.
// This function must be called before using any other functions in the package.
func InitAuthClient(serverURL, signingKey, authToken, authTokenRefresh string) {
	jwtSigningKey = signingKey
	KeyringKey = authToken
	RefreshKeyringKey = authTokenRefresh
	ServerURL = serverURL
}

// decodeJWT decodes a JWT token and returns the claims contained within it.
// Returns the claims if the token is valid, else an error.
func decodeJWT(tokenStr string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(jwtSigningKey), nil
	})

	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}

// isJwtTokenInKeyring checks if the system keyring contains a JWT token.
// Returns 'true' and the token if it exists, 'false' and an empty string if it doesn't.
// Returns an error if there was a problem accessing the keyring.
func isJwtTokenInKeyring() (bool, string, error) {
	token, err := keyring.Get(KeyringService, KeyringKey)
	if err != nil {
		if err == keyring.ErrNotFound {
			return false, "", nil
		}
		return false, "", errors.New("failed to access keyring: " + err.Error())
	}
	return true, token, nil
}

// ClearKeyring clears the JWT token and refresh token from the system keyring atomically.
// Returns an error if there was a problem accessing or clearing the keyring.
func ClearKeyring() error {
	accessToken, err := keyring.Get(KeyringService, KeyringKey)
	if err != nil {
		return errors.New("failed to retrieve access token from keyring: " + err.Error())
	}

	err = keyring.Delete(KeyringService, KeyringKey)
	if err != nil {
		return errors.New("failed to delete access token from keyring: " + err.Error())
	}

	err = keyring.Delete(KeyringService, RefreshKeyringKey)
	if err != nil {
		keyring.Set(KeyringService, KeyringKey, accessToken)
		return errors.New("failed to delete refresh token from keyring: " + err.Error())
	}

	return nil
}

// IsUserAuthenticated checks if the user is authenticated by checking if a valid JWT token
// exists in the system keyring. If a valid token is found, it returns the token, else it
// returns an empty string. If the token is expired, it tries to refresh the token using
// the refresh token.
func IsUserAuthenticated() (string, error) {

	hasJwt, tokenStr, err := isJwtTokenInKeyring()

	if err != nil {
		return "", err
	}

	if !hasJwt {
		return "", nil
	}

	_, err = decodeJWT(tokenStr)
	if err != nil {
		if ve, ok := err.(*jwt.ValidationError); ok {
			if ve.Errors&jwt.ValidationErrorExpired != 0 {
				newToken, refreshErr := RefreshAccessToken(tokenStr)
				if refreshErr != nil {
					return "", refreshErr
				}
				return newToken, nil
			}
		}
		return "", err
	}

	return tokenStr, nil
}

// CurrentUserID returns the ID of the signed-in user, taken from the JWT
// claims. Returns an empty string when no user is signed in.
func CurrentUserID() (string, error) {
	token, err := IsUserAuthenticated()
	if err != nil || token == "" {
		return "", err
	}

	claims, err := decodeJWT(token)
	if err != nil {
		return "", err
	}

	id, _ := claims["id"].(string)
	return id, nil
}

// postAuth sends a JSON request to one of the auth endpoints and decodes the
// token pair from the response. If handleTokenResponse is set to 'true', it
// saves the tokens to the keyring.
func postAuth(path string, payload interface{}, tokenString *string, handleTokenResponse bool) (*TokenResult, error) {

	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}

	req, err := http.NewRequest("POST", ServerURL+path, bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}

	req.Header.Set("Content-Type", "application/json")

	if tokenString != nil {
		req.Header.Add("Authorization", "Bearer "+*tokenString)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %v", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		var errBody struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(bodyBytes, &errBody); err == nil && errBody.Error != "" {
			return nil, errors.New(errBody.Error)
		}
		return nil, fmt.Errorf("request failed with status %d", resp.StatusCode)
	}

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}

	tokenResult := &TokenResult{}
	if err := json.Unmarshal(bodyBytes, tokenResult); err != nil {
		return nil, err
	}

	if handleTokenResponse {
		err = keyring.Set(KeyringService, KeyringKey, tokenResult.Token)
		if err != nil {
			return nil, err
		}

		if tokenResult.RefreshToken != "" {
			err = keyring.Set(KeyringService, RefreshKeyringKey, tokenResult.RefreshToken)
			if err != nil {
				keyring.Delete(KeyringService, KeyringKey)
				return nil, err
			}
		}
	}

	return tokenResult, nil
}

// RefreshAccessToken attempts to refresh the JWT token using the refresh token.
// Returns the refreshed token if successful, else an error.
func RefreshAccessToken(tokenStr string) (string, error) {

	refreshToken, err := keyring.Get(KeyringService, RefreshKeyringKey)

	if err != nil {
		return "", err
	}

	payload := map[string]string{
		"refreshToken": refreshToken,
	}

	tokenResponse, err := postAuth("/auth/refresh", payload, &tokenStr, true)
	if err != nil {
		return "", err
	}

	return tokenResponse.Token, nil
}

// SignIn attempts to sign in a user with the provided username and password.
// Returns the JWT token and refresh token if the sign in was successful, else an error.
func SignIn(username, password string) (string, string, error) {

	isSignedIn, _, err := isJwtTokenInKeyring()

	if err != nil {
		return "", "", err
	}

	if isSignedIn {
		return "", "", errors.New("a user is already signed in")
	}

	payload := map[string]string{
		"username": username,
		"password": password,
	}

	tokenResponse, err := postAuth("/auth/signin", payload, nil, true)
	if err != nil {
		return "", "", err
	}

	return tokenResponse.Token, tokenResponse.RefreshToken, nil
}

// SignUp attempts to sign up a new user with the provided username, email, and password.
// Returns the JWT token and refresh token if the sign up was successful, else an error.
func SignUp(username, email, password string) (string, string, error) {

	isSignedIn, _, err := isJwtTokenInKeyring()

	if err != nil {
		return "", "", err
	}

	if isSignedIn {
		return "", "", errors.New("a user is already signed in")
	}

	if !(len(username) > 1) {
		return "", "", errors.New("username must be at least 2 characters")
	}

	if !utils.ValidateEmail(email) {
		return "", "", errors.New("invalid email format")
	}

	if !utils.ValidatePassword(password) {
		return "", "", errors.New("password must be at least 8 characters and contain both letters and numbers")
	}

	payload := map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	}

	tokenResponse, err := postAuth("/auth/signup", payload, nil, true)
	if err != nil {
		return "", "", err
	}

	return tokenResponse.Token, tokenResponse.RefreshToken, nil
}

// SignOut signs out the current user by notifying the server and removing
// the tokens from the system keyring.
// Returns an error if the sign out operation fails.
func SignOut() error {

	token, err := IsUserAuthenticated()

	if err != nil {
		return err
	}

	if token == "" {
		return errors.New("no user is currently signed in")
	}

	_, err = postAuth("/auth/signout", map[string]string{}, &token, false)
	if err != nil {
		return err
	}

	return ClearKeyring()
}
