package handler

import (
    "fmt"
    "strconv"

    "github.com/labstack/echo/v4"
)

// getUserID extracts the authenticated user's numeric ID from the
// context.  JWTAuth stores the token subject under "user_id"; the
// claim may arrive as a string or a JSON number depending on the
// issuer, so both are accepted.
func getUserID(c echo.Context) (uint64, error) {
    v := c.Get("user_id")
    switch t := v.(type) {
    case string:
        id, err := strconv.ParseUint(t, 10, 64)
        if err != nil || id == 0 {
            return 0, fmt.Errorf("invalid user id claim: %q", t)
        }
        return id, nil
    case float64:
        if t < 1 {
            return 0, fmt.Errorf("invalid user id claim: %v", t)
        }
        return uint64(t), nil
    }
    return 0, fmt.Errorf("missing user id claim")
}

// getUserRole extracts the role claim set by JWTAuth.  A missing or
// non-string claim yields the empty role, which grants nothing.
func getUserRole(c echo.Context) string {
    if r, ok := c.Get("role").(string); ok {
        return r
    }
    return ""
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, error) {
    id, err := strconv.ParseUint(c.Param(name), 10, 64)
    if err != nil || id == 0 {
        return 0, fmt.Errorf("invalid %s", name)
    }
    return id, nil
}
