package presence

import "strings"

const (
	cdnBase   = "https://cdn.discordapp.com"
	mediaBase = "https://media.discordapp.net"
)

func (u User) AvatarURL() string {
	if u.Avatar == "" {
		return cdnBase + "/embed/avatars/0.png"
	}

	return cdnBase + "/avatars/" + u.ID + "/" + u.Avatar + ".png"
}

func (u User) ProfileURL() string {
	return "https://discord.com/users/" + u.ID
}

// DisplayName prefers the global display name over the username.
func (u User) DisplayName() string {
	if u.GlobalName != "" {
		return u.GlobalName
	}

	return u.Username
}

// ImageURL resolves the large asset of an activity. Application assets live
// under app-assets/<application id>; "mp:" assets are proxied media.
func (a Activity) ImageURL() string {
	if a.Assets == nil || a.Assets.LargeImage == "" {
		return ""
	}

	image := a.Assets.LargeImage
	if rest, ok := strings.CutPrefix(image, "mp:"); ok {
		return mediaBase + "/" + rest
	}

	if a.ApplicationID == "" {
		return ""
	}

	return cdnBase + "/app-assets/" + a.ApplicationID + "/" + image + ".png"
}

func (s Spotify) TrackURL() string {
	if s.TrackID == "" {
		return ""
	}

	return "https://open.spotify.com/track/" + s.TrackID
}
