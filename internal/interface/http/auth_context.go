package http

import "github.com/gin-gonic/gin"

const subjectKey = "auth_subject"

func setSubject(c *gin.Context, subject string) {
	c.Set(subjectKey, subject)
}

func getSubject(c *gin.Context) string {
	return c.GetString(subjectKey)
}
