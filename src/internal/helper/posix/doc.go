// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package posix provides [POSIX]-compliant helper functions shared by the
// command line tools.
//
// GetExecutableName lets each binary print usage lines with the name it was
// invoked as, which matters for hook scripts that are usually symlinked
// under a different name.
//
// [POSIX]: https://grokipedia.com/page/POSIX
package posix
