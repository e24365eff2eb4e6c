package users

import "time"

type User struct {
	ID        string    `bson:"_id" json:"id"`
	Name      string    `bson:"name" json:"name"`
	Email     string    `bson:"email" json:"email"`
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
}

type RegisterUserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type RegisterUserResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	User    User   `json:"user"`
}

type ListUsersResponse struct {
	Status string `json:"status"`
	Data   []User `json:"data"`
	Count  int    `json:"count"`
}
