// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package migrate moves users and their tokens from one privacyIDEA
// instance to another.
//
// Users are found and created through the REST API of each instance.
// Token rows are copied between the two databases named by their pi.cfg
// files, which keeps encrypted seeds and hashed PINs intact; both
// instances therefore have to share the same encryption key.
//
// A config file (JSON, or YAML by extension) drives the run:
//
//	{
//	    "SQL": {"PRIVACYIDEA_FROM": "/etc/privacyidea/pi.cfg",
//	            "PRIVACYIDEA_TO": "/etc/newprivacyidea/pi.cfg"},
//	    "API": {"FROM": {"url": "https://pi-old"}, "TO": {"url": "https://pi-new"}},
//	    "MIGRATE": {
//	        "user": {"find": {"username": "*@example.com", "realm": "RealmA"},
//	                 "pattern": "^(.*?)@example.com$", "replace": "\\1",
//	                 "attributes": ["email", "givenname", "surname"]},
//	        "serial": {"pattern": "^(.*)$", "replace": "\\g<1>_new"}
//	    },
//	    "ASSIGNMENTS": {"to_realm": "realmC", "to_resolver": "resolverC"}
//	}
//
// Replacements use Python re.sub syntax (\1, \g<name>) so existing config
// files keep working.
package migrate
