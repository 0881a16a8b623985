package app

import "math/rand"

var (
	nicknameAdjectives = []string{
		"Sunny", "Rocket", "Brave", "Clever", "Happy", "Chill",
		"Mighty", "Rapid", "Cosmic", "Bouncy", "Quiet", "Zippy",
	}
	nicknameAnimals = []string{
		"Panda", "Koala", "Tiger", "Otter", "Fox", "Dolphin",
		"Eagle", "Turtle", "Penguin", "Lemur", "Rabbit", "Seal",
	}
)

// randomNickname produces a classroom-friendly display name for students who
// join without one. Display only; answer attribution stays on the anon id.
func randomNickname(rnd *rand.Rand) string {
	return nicknameAdjectives[rnd.Intn(len(nicknameAdjectives))] + " " + nicknameAnimals[rnd.Intn(len(nicknameAnimals))]
}
