package common

// AuthorizationHeader carries the bearer access token on API requests.
const AuthorizationHeader = "Authorization"

// BearerPrefix precedes the token in the Authorization header.
const BearerPrefix = "Bearer "
