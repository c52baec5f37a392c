// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package gc provides reusable byte buffer pooling on top of [bytebufferpool].
// The privacyIDEA client reads every response body through it, and bulk
// commands that issue thousands of requests keep their allocations flat.
//
// [bytebufferpool]: https://github.com/valyala/bytebufferpool
package gc
