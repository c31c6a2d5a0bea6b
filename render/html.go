package render

import (
	"html/template"
	"io"
)

var cardTemplates = template.Must(template.New("cards").Parse(`
{{- define "presence" -}}
<a class="status-card status-card--discord" href="{{.ProfileURL}}" target="_blank" rel="noopener noreferrer">
  <div class="status-card__row">
    <span class="status-card__avatar">
      <img src="{{.AvatarURL}}" alt="{{.DisplayName}}" width="40" height="40">
      <span class="status-card__dot" style="background-color: {{.StatusColor}}"></span>
    </span>
    <span class="status-card__text">
      <strong>DISCORD</strong>
      <span class="status-card__subtitle">{{.Subtitle}}</span>
    </span>
  </div>
  {{- with .Music}}
  <div class="status-card__music">
    <img src="{{.AlbumArtURL}}" alt="{{.Song}}" width="40" height="40">
    <span class="status-card__text">
      <span class="status-card__label">Listening to Spotify</span>
      <span class="status-card__song">{{.Song}}</span>
      <span class="status-card__artist">by {{.Artist}}</span>
    </span>
  </div>
  {{- end}}
</a>
{{- end -}}

{{- define "profile" -}}
<a class="status-card status-card--github" href="{{.URL}}" target="_blank" rel="noopener noreferrer">
  <div class="status-card__row">
    <span class="status-card__avatar"><img src="{{.AvatarURL}}" alt="{{.Login}}" width="40" height="40"></span>
    <span class="status-card__text">
      <strong>GITHUB</strong>
      <span class="status-card__subtitle">{{.Handle}}</span>
    </span>
  </div>
</a>
{{- end -}}
`))

func WritePresenceHTML(w io.Writer, c PresenceCard) error {
	return cardTemplates.ExecuteTemplate(w, "presence", c)
}

func WriteProfileHTML(w io.Writer, c ProfileCard) error {
	return cardTemplates.ExecuteTemplate(w, "profile", c)
}
