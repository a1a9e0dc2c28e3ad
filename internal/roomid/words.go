package roomid

var creatures = []string{
	"otter", "heron", "lynx", "marten", "puffin", "gecko", "bison", "ibis", "newt", "wren",
	"koala", "panda", "tapir", "okapi", "quokka", "walrus", "beaver", "badger", "falcon", "raven",
}

var sounds = []string{
	"echo", "chime", "hum", "murmur", "ripple", "whistle", "drum", "bell", "tone", "chord",
	"melody", "rhythm", "tempo", "cadence", "hush", "ring", "buzz", "purr", "trill", "note",
}

var places = []string{
	"harbor", "meadow", "canyon", "ridge", "lagoon", "orchard", "valley", "summit", "delta", "grove",
	"island", "prairie", "tundra", "glacier", "coast", "marsh", "dune", "fjord", "reef", "bay",
}

var moods = []string{
	"calm", "brave", "cozy", "jolly", "merry", "swift", "gentle", "bright", "quiet", "sunny",
	"plucky", "silly", "mellow", "chirpy", "breezy", "nimble", "lucky", "sleepy", "cheery", "witty",
}

var colors = []string{
	"amber", "azure", "coral", "crimson", "ivory", "jade", "lilac", "olive", "pearl", "ruby",
	"sage", "scarlet", "silver", "teal", "umber", "violet", "golden", "indigo", "copper", "cobalt",
}
