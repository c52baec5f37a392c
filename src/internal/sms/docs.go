// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package sms holds the SMS glue: phone number normalization for the SMS
// token tools and a client for the Boom Alert gateway, used as a script
// SMS provider by the platform.
package sms
