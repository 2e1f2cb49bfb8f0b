package database

import "time"

type User struct {
	Id        string    `bson:"_id"`
	Email     string    `bson:"email"`
	Name      string    `bson:"name"`
	Plan      string    `bson:"plan,omitempty"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

type Collaborator struct {
	UserId string `bson:"user_id"`
	Access string `bson:"access"`
}

type Document struct {
	Id            string         `bson:"_id"`
	OwnerId       string         `bson:"owner_id"`
	Title         string         `bson:"title"`
	Content       string         `bson:"content"`
	Collaborators []Collaborator `bson:"collaborators"`
	CreatedAt     time.Time      `bson:"created_at"`
	UpdatedAt     time.Time      `bson:"updated_at"`
}

type CreateDocumentParams struct {
	Id      string
	OwnerId string
	Title   string
	Content string
}
