// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package certcheck

import (
	"bufio"
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Syntax selects how certificate paths are extracted from a config file.
type Syntax int

const (
	// SyntaxApache extracts SSLCertificateFile directives (Apache and httpd).
	SyntaxApache Syntax = iota
	// SyntaxNginx extracts ssl_certificate directives.
	SyntaxNginx
	// SyntaxAny tries both, used for a user supplied directory.
	SyntaxAny
)

// ConfigDir is a directory of web server configuration files.
type ConfigDir struct {
	Name   string
	Path   string
	Syntax Syntax
}

// DefaultConfigDirs returns the well-known directories of the supported
// web servers.
func DefaultConfigDirs() []ConfigDir {
	return []ConfigDir{
		{Name: "apache", Path: "/etc/apache2/sites-enabled", Syntax: SyntaxApache},
		{Name: "httpd", Path: "/etc/httpd/conf.d", Syntax: SyntaxApache},
		{Name: "nginx", Path: "/etc/nginx/sites-enabled", Syntax: SyntaxNginx},
	}
}

// CustomConfigDir returns a ConfigDir for a user supplied directory.
func CustomConfigDir(path string) ConfigDir {
	return ConfigDir{Name: "custom", Path: path, Syntax: SyntaxAny}
}

// FindConfigFiles walks dir recursively and returns every regular file whose
// name ends with ".conf" or has no extension at all. A missing directory
// yields no files and no error.
func FindConfigFiles(dir string) ([]string, error) {
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			// unreadable subdirectory
			return nil
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		if ext := filepath.Ext(name); ext == ".conf" || ext == "" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

var nginxCertRe = regexp.MustCompile(`ssl_certificate\s+(\S+);`)

// ExtractNginxCertificatePaths returns the arguments of all ssl_certificate
// directives in content. ssl_certificate_key is not matched and commented
// lines are skipped.
func ExtractNginxCertificatePaths(content []byte) []string {
	var paths []string
	eachLine(content, func(line string) {
		for _, m := range nginxCertRe.FindAllStringSubmatch(line, -1) {
			paths = append(paths, unquote(m[1]))
		}
	})
	return paths
}

// ExtractApacheCertificatePaths returns the last field of every
// SSLCertificateFile line in content. Commented lines are skipped.
func ExtractApacheCertificatePaths(content []byte) []string {
	var paths []string
	eachLine(content, func(line string) {
		if !strings.Contains(line, "SSLCertificateFile") {
			return
		}
		fields := strings.Fields(line)
		paths = append(paths, unquote(fields[len(fields)-1]))
	})
	return paths
}

// ExtractCertificatePaths dispatches on syntax.
func ExtractCertificatePaths(content []byte, syntax Syntax) []string {
	switch syntax {
	case SyntaxNginx:
		return ExtractNginxCertificatePaths(content)
	case SyntaxApache:
		return ExtractApacheCertificatePaths(content)
	default:
		return append(ExtractApacheCertificatePaths(content), ExtractNginxCertificatePaths(content)...)
	}
}

// eachLine calls fn for every non-empty line that is not a comment.
func eachLine(content []byte, fn func(line string)) {
	sc := bufio.NewScanner(bytes.NewReader(content))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fn(line)
	}
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}
