// Command mockllm is a local stand-in for the generation providers: it
// answers both the OpenAI-style chat completions surface and the fallback
// /generate surface, for development and manual testing.
package main

import (
	"encoding/json"
	"log"
	"net/http"
)

func main() {
	http.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		json.NewDecoder(r.Body).Decode(&req)

		prompt := ""
		if len(req.Messages) > 0 {
			prompt = req.Messages[len(req.Messages)-1].Content
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": "mock completion for: " + prompt}},
			},
		})

		log.Printf("chat completion served: %d bytes prompt", len(prompt))
	})

	http.HandleFunc("/generate", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Prompt string `json:"prompt"`
		}
		json.NewDecoder(r.Body).Decode(&req)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"response": "mock fallback for: " + req.Prompt,
		})

		log.Printf("fallback generation served: %d bytes prompt", len(req.Prompt))
	})

	log.Println("Mock LLM backend starting on port 9000")
	http.ListenAndServe(":9000", nil)
}
