// Package browser holds the state machine behind a character search view.
//
// A Session owns the current search query, the pages accumulated for it and
// the ordered display list derived from them. Presentation code forwards user
// intents (text changed, clear pressed, scrolled near the end) and reads the
// resulting State; every intent that changes the query issues exactly one
// fetch through a Gateway.
//
// Each fetch carries the query and sequence number it was issued for. A
// result is applied only if no newer fetch has been issued since, so a slow
// response for a superseded term can never overwrite newer state.
//
// Example usage:
//
//	gw, _ := client.New(client.DefaultConfig(nil, "my-app/1.0"))
//	s := browser.NewSession(gw, browser.Config{})
//	defer s.Close()
//
//	s.OnSearchTextChanged("sky")
//	s.Wait()
//	for _, c := range s.State().Display {
//		fmt.Println(c.Name, c.DisplayDate())
//	}
package browser
