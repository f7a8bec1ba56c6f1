package contextKey

// key is unexported so context values set here cannot collide with values
// set by other packages.
type key string

// UserIDKey holds the authenticated user's ID extracted from the JWT.
const UserIDKey key = "userID"

// JwtErrorKey holds any error encountered while parsing the JWT.
const JwtErrorKey key = "jwtError"
