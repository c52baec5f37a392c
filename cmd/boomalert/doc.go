// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// boomalert sends an SMS through the Boom Alert gateway. It is meant to be
// configured as a script SMS provider in privacyIDEA.
//
// # Usage
//
//	echo "Your OTP: 123456" | boomalert [-c /etc/privacyidea/boomalert.cfg] PHONE...
//	boomalert -g > /etc/privacyidea/boomalert.cfg
//
// A gateway rejection exits with the HTTP status code, which privacyIDEA
// records as the return code of the script.
package main
