// Package codec converts records to and from the transport-safe nested
// structure exchanged between deployments.
//
// # Wire shape
//
//	{
//	  "model": "base.student",
//	  "fields": {
//	    "uuid": "6f0c...",
//	    "registration_id": "12345678",
//	    "person": {"model": "base.person", "fields": {...}, "last_sync": null},
//	    "changed": 1469527380.5
//	  },
//	  "last_sync": 1469520000
//	}
//
// Relations are nested records, temporal values are epoch seconds and every
// other value is a JSON scalar. The local surrogate id and the owner
// association never appear on the wire.
//
// Materializing storage rows from a SerializedRecord is the reconciler's job;
// this package only builds and parses the structure.
package codec
