package validators

import "go.mongodb.org/mongo-driver/bson"

var ActivityValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"event_id",
			"event_type",
			"session_id",
			"occurred_at",
			"recorded_at",
		},
		"properties": bson.M{
			"event_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},
			"event_type": bson.M{
				"bsonType": "string",
				"enum": []string{
					"session.created",
					"session.updated",
					"session.deleted",
					"reservation.created",
					"reservation.cancelled",
				},
			},
			"session_id": bson.M{
				"bsonType": "string",
			},
			"member_id": bson.M{
				"bsonType": "string",
			},
			"occurred_at": bson.M{
				"bsonType": "date",
			},
			"recorded_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
