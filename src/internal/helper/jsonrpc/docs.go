// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package jsonrpc decodes the [JSON-RPC 2.0] style envelope that every
// privacyIDEA REST endpoint answers with:
//
//	{
//	  "jsonrpc": "2.0",
//	  "result": {"status": true, "value": ...},
//	  "detail": {...},
//	  "version": "privacyIDEA 3.9",
//	  "id": 1
//	}
//
// A failed call keeps the same envelope with result.status set to false and
// result.error holding a numeric code and a message.
//
// [JSON-RPC 2.0]: https://www.jsonrpc.org/specification
package jsonrpc
