package server

import (
	"html/template"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-login-gateway/internal/errors"
)

const contentTypeHTML = "text/html; charset=utf-8"

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head><title>{{.AppName}}</title></head>
<body>
	<h1>Server ID: {{.ServerInstanceID}}</h1>
	<a href="/auth/login">Login with OAuth2</a>
</body>
</html>
`))

var profileTemplate = template.Must(template.New("profile").Parse(`<!DOCTYPE html>
<html>
<head><title>{{.AppName}} - Profile</title></head>
<body>
	<h1>Logged In: {{.ServerInstanceID}}</h1>
	<p>{{.Profile.FirstName}} {{.Profile.LastName}} &lt;{{.Profile.Email}}&gt;</p>
	<h2>Organizations</h2>
	<ul>
	{{range .Profile.Organizations}}<li>{{.}}</li>{{end}}
	</ul>
	<p>Access Token: {{.Profile.AccessToken}}</p>
	<p>Exchanged Token: {{.Profile.ExchangedToken}}</p>
	<a href="/logout">Logout</a>
</body>
</html>
`))

// IndexHandler renders the anonymous landing page
func (s *Server) IndexHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := map[string]interface{}{
			"AppName":          s.config.GetAppName(),
			"ServerInstanceID": s.serverInstanceID,
		}

		w.Header().Set("Content-Type", contentTypeHTML)
		_ = indexTemplate.Execute(w, data)
	}
}

// LoginHandler starts the authorization-code flow and redirects the browser
// to the provider. The flow context is durably persisted before the
// redirect is issued; if persistence fails the request fails outright
// rather than sending the user into a flow that cannot be correlated back.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := sessionFromContext(r.Context())

		authURL, err := s.flow.InitiateLogin(r.Context(), session)
		if err != nil {
			log.Err(err).Str("session_id", session.ID).Msg("login initiation failed")
			http.Error(w, "Failed to start login", http.StatusInternalServerError)
			return
		}

		http.Redirect(w, r, authURL, http.StatusFound)
	}
}

// CallbackHandler correlates the provider callback with the stored flow
// context and completes the login. Flow-level failures are logged and the
// user lands back on the anonymous view; they are never surfaced as raw
// errors.
func (s *Server) CallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := sessionFromContext(r.Context())

		state := r.FormValue("state")
		code := r.FormValue("code")
		errorParam := r.FormValue("error")

		if errorParam != "" {
			log.Warn().Str("error", errorParam).Str("error_description", r.FormValue("error_description")).
				Msg("provider returned authorization error")
			http.Redirect(w, r, RouteIndex, http.StatusFound)
			return
		}

		_, err := s.flow.HandleCallback(r.Context(), session, state, code)
		if err != nil {
			if errors.Is(err, errors.ErrSessionPersistenceFailed) {
				log.Err(err).Str("session_id", session.ID).Msg("callback session persistence failed")
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}
			// Token values are deliberately absent from these errors.
			log.Warn().Err(err).Str("session_id", session.ID).Msg("login callback failed")
			http.Redirect(w, r, RouteIndex, http.StatusFound)
			return
		}

		http.Redirect(w, r, RouteProfile, http.StatusFound)
	}
}

// ProfileHandler renders the identity bound to the session. Anonymous
// sessions are redirected to the landing page; that is normal control flow,
// not an error.
func (s *Server) ProfileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := sessionFromContext(r.Context())

		profile, err := s.flow.CurrentIdentity(session)
		if err != nil {
			if !errors.Is(err, errors.ErrNotAuthenticated) {
				log.Warn().Err(err).Str("session_id", session.ID).Msg("failed to restore identity from session")
			}
			http.Redirect(w, r, RouteIndex, http.StatusFound)
			return
		}

		data := map[string]interface{}{
			"AppName":          s.config.GetAppName(),
			"ServerInstanceID": profile.ServerInstanceID,
			"Profile":          profile,
		}

		w.Header().Set("Content-Type", contentTypeHTML)
		_ = profileTemplate.Execute(w, data)
	}
}

// LogoutHandler destroys the session record entirely and expires the
// cookie. A later request starts over with a fresh session identifier.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := sessionFromContext(r.Context())

		if err := s.flow.Logout(r.Context(), session.ID); err != nil {
			log.Err(err).Str("session_id", session.ID).Msg("logout failed")
		}

		s.ClearSessionCookie(w, r)
		http.Redirect(w, r, RouteIndex, http.StatusFound)
	}
}
