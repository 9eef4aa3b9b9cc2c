package config

import (
	"net/url"
	"strings"

	"github.com/go-git/go-git/v5"
)

// repositoryFromGit reads owner/repo from the origin remote of the repository
// containing dir. Any failure yields "".
func repositoryFromGit(dir string) string {
	if dir == "" {
		return ""
	}

	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return ""
	}

	remote, err := repo.Remote("origin")
	if err != nil {
		return ""
	}

	for _, u := range remote.Config().URLs {
		if r := RepositoryFromRemoteURL(u); r != "" {
			return r
		}
	}
	return ""
}

// RepositoryFromRemoteURL extracts "owner/repo" from an https, ssh or scp-style
// git remote URL.
func RepositoryFromRemoteURL(remote string) string {
	remote = strings.TrimSpace(remote)
	var path string

	switch {
	case strings.Contains(remote, "://"):
		u, err := url.Parse(remote)
		if err != nil {
			return ""
		}
		path = u.Path
	case strings.Contains(remote, ":"):
		// git@github.com:owner/repo.git
		_, path, _ = strings.Cut(remote, ":")
	default:
		return ""
	}

	path = strings.TrimSuffix(strings.Trim(path, "/"), ".git")
	parts := strings.Split(path, "/")
	if len(parts) < 2 {
		return ""
	}
	owner, repo := parts[len(parts)-2], parts[len(parts)-1]
	if owner == "" || repo == "" {
		return ""
	}
	return owner + "/" + repo
}
