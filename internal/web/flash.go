package web

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
)

const flashCookie = "evsched_flash"

// notice is a transient message shown once after a redirect.
type notice struct {
	Title string `json:"t"`
	Body  string `json:"b,omitempty"`
	Error bool   `json:"e,omitempty"`
}

func setFlash(w http.ResponseWriter, n notice) {
	data, err := json.Marshal(n)
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    base64.RawURLEncoding.EncodeToString(data),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// takeFlash reads and clears the pending notice, if any.
func takeFlash(w http.ResponseWriter, r *http.Request) *notice {
	c, err := r.Cookie(flashCookie)
	if err != nil {
		return nil
	}
	http.SetCookie(w, &http.Cookie{Name: flashCookie, Path: "/", MaxAge: -1})

	data, err := base64.RawURLEncoding.DecodeString(c.Value)
	if err != nil {
		return nil
	}
	var n notice
	if json.Unmarshal(data, &n) != nil || n.Title == "" {
		return nil
	}
	return &n
}

// redirectWith sets n and sends the browser back to the list.
func redirectWith(w http.ResponseWriter, r *http.Request, n notice) {
	setFlash(w, n)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
