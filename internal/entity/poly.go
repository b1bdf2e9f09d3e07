package entity

import (
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/hypergrid-games/hypergrid-backend/internal/apperror"
)

const (
	BoardSize         = 40
	PassGoBonus       = 200
	JailPosition      = 10
	TurnLimit         = 50
	MonopolyThreshold = 8

	NoOwner = -1
)

const (
	SpaceSafe     = "safe"
	SpaceGo       = "go"
	SpaceJail     = "jail"
	SpaceParking  = "parking"
	SpaceGoToJail = "go_to_jail"
	SpaceChance   = "chance"
	SpaceProperty = "property"
)

const (
	TierLow  = "low"
	TierMid  = "mid"
	TierHigh = "high"
)

const (
	PendingBuy     = "buy"
	PendingUpgrade = "upgrade"
	PendingChance  = "chance"
	PendingInfo    = "info"
)

const (
	EndElimination = "elimination"
	EndTurnLimit   = "turn_limit"
	EndMonopoly    = "monopoly"
)

const (
	CardCollect        = "collect"
	CardPay            = "pay"
	CardCollectFromAll = "collect_from_all"
	CardPayToAll       = "pay_to_all"
	CardAdvanceGo      = "advance_go"
	CardGoToJail       = "go_to_jail"
	CardRentHoliday    = "rent_holiday"
	CardDoubleRent     = "double_rent"
	CardPayPerProperty = "pay_per_property"
	CardPayPerUpgrade  = "pay_per_upgrade"
	CardMoveBack       = "move_back"
	CardFreeUpgrade    = "free_upgrade"
	CardDowngrade      = "downgrade"
	CardRollAgain      = "roll_again"
)

// Space is one of the forty board positions. Price fields are only
// meaningful for SpaceProperty; Owner is NoOwner while unowned.
type Space struct {
	Kind         string `json:"kind"`
	Name         string `json:"name"`
	Tier         string `json:"tier,omitempty"`
	BuyPrice     int    `json:"buy_price,omitempty"`
	Rent         int    `json:"rent,omitempty"`
	UpgradedRent int    `json:"upgraded_rent,omitempty"`
	UpgradeCost  int    `json:"upgrade_cost,omitempty"`
	Owner        int    `json:"owner"`
	Upgraded     bool   `json:"upgraded,omitempty"`
}

type PolyPlayer struct {
	ID          int    `json:"id"`
	Name        string `json:"username"`
	Cash        int    `json:"cash"`
	Position    int    `json:"position"`
	Properties  []int  `json:"properties"`
	Bankrupt    bool   `json:"bankrupt"`
	RentHoliday bool   `json:"rent_holiday,omitempty"`
	DoubleRent  bool   `json:"double_rent,omitempty"`
}

type ChanceCard struct {
	ID     int    `json:"id"`
	Kind   string `json:"kind"`
	Name   string `json:"name"`
	Action string `json:"action"`
	Amount int    `json:"amount,omitempty"`
	Spaces int    `json:"spaces,omitempty"`
}

// PendingAction is the decision the current player must settle before
// the turn can advance.
type PendingAction struct {
	Kind      string `json:"kind"`
	Position  int    `json:"position,omitempty"`
	CanAfford bool   `json:"can_afford,omitempty"`
	Message   string `json:"message,omitempty"`
}

type PolyRanking struct {
	PlayerID int    `json:"player_id"`
	Name     string `json:"username"`
	NetWorth int    `json:"net_worth"`
	Bankrupt bool   `json:"bankrupt"`
}

// PolyGame is the property game state. The chance deck is kept off the
// wire: cards are drawn without replacement and revealed one at a time
// through LastCard.
type PolyGame struct {
	Board     []Space        `json:"board"`
	Players   []*PolyPlayer  `json:"players"`
	Current   int            `json:"current_player"`
	TurnCount int            `json:"turn_count"`
	Pending   *PendingAction `json:"pending_action,omitempty"`
	LastRoll  [2]int         `json:"last_roll"`
	LastCard  *ChanceCard    `json:"last_card,omitempty"`
	Status    string         `json:"status"`
	EndReason string         `json:"end_reason,omitempty"`
	WinnerID  int            `json:"winner_id"`
	Rankings  []PolyRanking  `json:"rankings,omitempty"`

	deck []ChanceCard
	rng  *rand.Rand
}

var chanceCards = []ChanceCard{
	{ID: 1, Kind: "positive", Name: "Bank Error", Action: CardCollect, Amount: 100},
	{ID: 2, Kind: "positive", Name: "Tax Refund", Action: CardCollect, Amount: 75},
	{ID: 3, Kind: "positive", Name: "Birthday", Action: CardCollectFromAll, Amount: 20},
	{ID: 4, Kind: "positive", Name: "Lottery", Action: CardCollect, Amount: 150},
	{ID: 5, Kind: "positive", Name: "Advance to GO", Action: CardAdvanceGo},
	{ID: 6, Kind: "positive", Name: "Free Upgrade", Action: CardFreeUpgrade},
	{ID: 7, Kind: "positive", Name: "Rent Holiday", Action: CardRentHoliday},
	{ID: 8, Kind: "positive", Name: "Double Dice", Action: CardRollAgain},
	{ID: 9, Kind: "negative", Name: "Repairs", Action: CardPayPerUpgrade, Amount: 40},
	{ID: 10, Kind: "negative", Name: "Speeding Fine", Action: CardPay, Amount: 50},
	{ID: 11, Kind: "negative", Name: "Go to Jail", Action: CardGoToJail},
	{ID: 12, Kind: "negative", Name: "Property Tax", Action: CardPayPerProperty, Amount: 30},
	{ID: 13, Kind: "negative", Name: "Back 3 Spaces", Action: CardMoveBack, Spaces: 3},
	{ID: 14, Kind: "negative", Name: "Pay Each Player", Action: CardPayToAll, Amount: 30},
	{ID: 15, Kind: "negative", Name: "Downgrade", Action: CardDowngrade},
	{ID: 16, Kind: "negative", Name: "Rent Double", Action: CardDoubleRent},
}

var propertyTiers = map[string]Space{
	TierLow:  {BuyPrice: 60, Rent: 6, UpgradedRent: 30, UpgradeCost: 50},
	TierMid:  {BuyPrice: 100, Rent: 12, UpgradedRent: 60, UpgradeCost: 80},
	TierHigh: {BuyPrice: 180, Rent: 25, UpgradedRent: 120, UpgradeCost: 120},
}

var propertyPositions = []int{1, 3, 6, 8, 11, 13, 16, 18, 21, 23, 26, 28}

var chancePositions = []int{2, 7, 12, 17, 22, 27, 32, 37}

func NewPolyGame() *PolyGame {
	return &PolyGame{
		Status:   StatusWaiting,
		WinnerID: NoOwner,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())), //nolint: gosec // game dice, not crypto
	}
}

// NewPolyBoard lays out the forty spaces: corner spaces, twelve
// properties in three tiers, eight chance spaces, the rest safe.
func NewPolyBoard() []Space {
	board := make([]Space, BoardSize)
	for i := range board {
		board[i] = Space{Kind: SpaceSafe, Name: "SAFE", Owner: NoOwner}
	}

	board[0] = Space{Kind: SpaceGo, Name: "GO", Owner: NoOwner}
	board[JailPosition] = Space{Kind: SpaceJail, Name: "JAIL", Owner: NoOwner}
	board[20] = Space{Kind: SpaceParking, Name: "FREE PARKING", Owner: NoOwner}
	board[30] = Space{Kind: SpaceGoToJail, Name: "GO TO JAIL", Owner: NoOwner}

	for i, pos := range propertyPositions {
		tier := TierHigh
		if i < 4 {
			tier = TierLow
		} else if i < 8 {
			tier = TierMid
		}

		prices := propertyTiers[tier]
		board[pos] = Space{
			Kind:         SpaceProperty,
			Name:         fmt.Sprintf("Property %d", i+1),
			Tier:         tier,
			BuyPrice:     prices.BuyPrice,
			Rent:         prices.Rent,
			UpgradedRent: prices.UpgradedRent,
			UpgradeCost:  prices.UpgradeCost,
			Owner:        NoOwner,
		}
	}

	for _, pos := range chancePositions {
		board[pos] = Space{Kind: SpaceChance, Name: "CHANCE", Owner: NoOwner}
	}

	return board
}

// Start seats the given players in order and begins play. Two-player
// games start richer: head-to-head bankruptcies take longer to force.
func (that *PolyGame) Start(names []string) error {
	if len(names) < 2 {
		return apperror.ErrNotEnoughPlayers
	}

	cash := 400
	if len(names) == 2 {
		cash = 500
	}

	players := make([]*PolyPlayer, 0, len(names))
	for i, name := range names {
		players = append(players, &PolyPlayer{
			ID:         i,
			Name:       name,
			Cash:       cash,
			Properties: []int{},
		})
	}

	that.Board = NewPolyBoard()
	that.Players = players
	that.Current = 0
	that.TurnCount = 1
	that.Pending = nil
	that.LastRoll = [2]int{}
	that.LastCard = nil
	that.Status = StatusPlaying
	that.EndReason = ""
	that.WinnerID = NoOwner
	that.Rankings = nil
	that.deck = that.shuffledDeck()

	return nil
}

// Reset returns to the initial waiting state.
func (that *PolyGame) Reset() {
	rng := that.rng
	*that = *NewPolyGame()
	if rng != nil {
		that.rng = rng
	}
}

func (that *PolyGame) IsFinished() bool {
	return that.Status == StatusFinished
}

func (that *PolyGame) IsPlaying() bool {
	return that.Status == StatusPlaying
}

// Roll draws two dice for the given seat and resolves the landing.
func (that *PolyGame) Roll(playerID int) error {
	if err := that.confirmTurn(playerID); err != nil {
		return err
	}

	if that.Pending != nil {
		return apperror.ErrWrongPendingAction
	}

	that.ApplyRoll(that.rng.Intn(6)+1, that.rng.Intn(6)+1)

	return nil
}

// ApplyRoll moves the current player by the dice sum, credits the
// passing bonus on a wrap and records the landing decision.
func (that *PolyGame) ApplyRoll(die1, die2 int) {
	player := that.Players[that.Current]

	that.LastRoll = [2]int{die1, die2}
	that.LastCard = nil

	oldPosition := player.Position
	player.Position = (oldPosition + die1 + die2) % BoardSize
	if player.Position < oldPosition {
		player.Cash += PassGoBonus
	}

	that.Pending = that.resolveLanding(player)
}

func (that *PolyGame) resolveLanding(player *PolyPlayer) *PendingAction {
	space := &that.Board[player.Position]

	switch space.Kind {
	case SpaceGo:
		player.Cash += PassGoBonus
		return &PendingAction{Kind: PendingInfo, Message: fmt.Sprintf("Collected $%d from GO!", PassGoBonus)}

	case SpaceProperty:
		return that.resolveProperty(player, space)

	case SpaceChance:
		return &PendingAction{Kind: PendingChance}

	case SpaceGoToJail:
		player.Position = JailPosition
		return &PendingAction{Kind: PendingInfo, Message: "Sent to JAIL!"}

	case SpaceParking:
		return &PendingAction{Kind: PendingInfo, Message: "Free Parking - Rest!"}

	case SpaceJail:
		return &PendingAction{Kind: PendingInfo, Message: "Just visiting JAIL"}

	default:
		return &PendingAction{Kind: PendingInfo, Message: "Safe space"}
	}
}

func (that *PolyGame) resolveProperty(player *PolyPlayer, space *Space) *PendingAction {
	switch {
	case space.Owner == NoOwner:
		return &PendingAction{
			Kind:      PendingBuy,
			Position:  player.Position,
			CanAfford: player.Cash >= space.BuyPrice,
		}

	case space.Owner == player.ID:
		if !space.Upgraded && player.Cash >= space.UpgradeCost {
			return &PendingAction{
				Kind:      PendingUpgrade,
				Position:  player.Position,
				CanAfford: true,
			}
		}
		return &PendingAction{Kind: PendingInfo, Message: "Your own property"}

	default:
		return that.chargeRent(player, space)
	}
}

// chargeRent transfers rent from the mover to the owner. A rent
// holiday waives one payment; a pending double-rent modifier doubles
// one payment. Both are cleared on use.
func (that *PolyGame) chargeRent(player *PolyPlayer, space *Space) *PendingAction {
	if player.RentHoliday {
		player.RentHoliday = false
		return &PendingAction{Kind: PendingInfo, Message: "Rent holiday - no rent due!"}
	}

	rent := space.Rent
	if space.Upgraded {
		rent = space.UpgradedRent
	}

	if player.DoubleRent {
		rent *= 2
		player.DoubleRent = false
	}

	player.Cash -= rent
	that.Players[space.Owner].Cash += rent

	return &PendingAction{Kind: PendingInfo, Message: fmt.Sprintf("Paid $%d rent!", rent)}
}

// ConfirmPurchase commits a pending purchase. An unaffordable or stale
// purchase is simply not applied; the turn still settles.
func (that *PolyGame) ConfirmPurchase(playerID int) error {
	if err := that.confirmPending(playerID, PendingBuy); err != nil {
		return err
	}

	player := that.Players[that.Current]
	space := &that.Board[player.Position]

	if space.Kind == SpaceProperty && space.Owner == NoOwner && player.Cash >= space.BuyPrice {
		player.Cash -= space.BuyPrice
		space.Owner = player.ID
		player.Properties = append(player.Properties, player.Position)
	}

	that.settle()

	return nil
}

// ConfirmUpgrade commits a pending upgrade under the same rules.
func (that *PolyGame) ConfirmUpgrade(playerID int) error {
	if err := that.confirmPending(playerID, PendingUpgrade); err != nil {
		return err
	}

	player := that.Players[that.Current]
	space := &that.Board[player.Position]

	if space.Kind == SpaceProperty && space.Owner == player.ID && !space.Upgraded && player.Cash >= space.UpgradeCost {
		player.Cash -= space.UpgradeCost
		space.Upgraded = true
	}

	that.settle()

	return nil
}

// DrawChance pops the next card, applies its effect and settles the
// turn. The deck is reshuffled from the full card set when exhausted.
func (that *PolyGame) DrawChance(playerID int) error {
	if err := that.confirmPending(playerID, PendingChance); err != nil {
		return err
	}

	if len(that.deck) == 0 {
		that.deck = that.shuffledDeck()
	}

	card := that.deck[len(that.deck)-1]
	that.deck = that.deck[:len(that.deck)-1]
	that.LastCard = &card

	that.applyCard(card, that.Players[that.Current])
	that.settle()

	return nil
}

// SkipAction declines whatever decision is pending. Declining is a
// valid choice, never an error.
func (that *PolyGame) SkipAction(playerID int) error {
	if err := that.confirmTurn(playerID); err != nil {
		return err
	}

	if that.Pending == nil {
		return apperror.ErrNoPendingAction
	}

	that.settle()

	return nil
}

func (that *PolyGame) confirmTurn(playerID int) error {
	switch that.Status {
	case StatusWaiting:
		return apperror.ErrGameIsNotStarted
	case StatusFinished:
		return apperror.ErrGameFinished
	}

	if playerID < 0 || playerID >= len(that.Players) {
		return apperror.ErrNotAPlayer
	}

	if that.Current != playerID {
		return apperror.ErrNotYourTurn
	}

	return nil
}

func (that *PolyGame) confirmPending(playerID int, kind string) error {
	if err := that.confirmTurn(playerID); err != nil {
		return err
	}

	if that.Pending == nil {
		return apperror.ErrNoPendingAction
	}

	if that.Pending.Kind != kind {
		return apperror.ErrWrongPendingAction
	}

	return nil
}

func (that *PolyGame) settle() {
	that.Pending = nil
	that.advanceTurn()
}

func (that *PolyGame) applyCard(card ChanceCard, player *PolyPlayer) {
	switch card.Action {
	case CardCollect:
		player.Cash += card.Amount

	case CardPay:
		player.Cash -= card.Amount

	case CardCollectFromAll:
		for _, other := range that.Players {
			if other.ID != player.ID && !other.Bankrupt {
				other.Cash -= card.Amount
				player.Cash += card.Amount
			}
		}

	case CardPayToAll:
		for _, other := range that.Players {
			if other.ID != player.ID && !other.Bankrupt {
				player.Cash -= card.Amount
				other.Cash += card.Amount
			}
		}

	case CardAdvanceGo:
		player.Position = 0
		player.Cash += PassGoBonus

	case CardGoToJail:
		player.Position = JailPosition

	case CardRentHoliday:
		player.RentHoliday = true

	case CardDoubleRent:
		player.DoubleRent = true

	case CardPayPerProperty:
		player.Cash -= card.Amount * len(player.Properties)

	case CardPayPerUpgrade:
		upgraded := 0
		for _, pos := range player.Properties {
			if that.Board[pos].Upgraded {
				upgraded++
			}
		}
		player.Cash -= card.Amount * upgraded

	case CardMoveBack:
		// backward moves never pass GO and are not re-resolved
		player.Position = (player.Position + BoardSize - card.Spaces) % BoardSize

	case CardFreeUpgrade:
		for _, pos := range player.Properties {
			if !that.Board[pos].Upgraded {
				that.Board[pos].Upgraded = true
				break
			}
		}

	case CardDowngrade:
		for _, pos := range player.Properties {
			if that.Board[pos].Upgraded {
				that.Board[pos].Upgraded = false
				break
			}
		}

	case CardRollAgain:
		// kept for deck parity, no effect
	}
}

// advanceTurn settles the mover's fate and hands the turn to the next
// non-bankrupt player, or ends the game.
func (that *PolyGame) advanceTurn() {
	player := that.Players[that.Current]

	if player.Cash < 0 && !player.Bankrupt {
		that.bankrupt(player)
	}

	active := 0
	for _, p := range that.Players {
		if !p.Bankrupt {
			active++
		}
	}

	if active == 1 {
		that.endGame(EndElimination)
		return
	}

	if that.TurnCount >= TurnLimit {
		that.endGame(EndTurnLimit)
		return
	}

	if len(player.Properties) >= MonopolyThreshold {
		that.endGame(EndMonopoly)
		return
	}

	that.Current = (that.Current + 1) % len(that.Players)
	that.TurnCount++

	for that.Players[that.Current].Bankrupt {
		that.Current = (that.Current + 1) % len(that.Players)
	}
}

// bankrupt is absorbing: all holdings revert to the bank immediately.
func (that *PolyGame) bankrupt(player *PolyPlayer) {
	player.Bankrupt = true

	for _, pos := range player.Properties {
		that.Board[pos].Owner = NoOwner
		that.Board[pos].Upgraded = false
	}

	player.Properties = []int{}
}

func (that *PolyGame) endGame(reason string) {
	that.Status = StatusFinished
	that.EndReason = reason

	rankings := make([]PolyRanking, 0, len(that.Players))
	for _, p := range that.Players {
		rankings = append(rankings, PolyRanking{
			PlayerID: p.ID,
			Name:     p.Name,
			NetWorth: that.netWorth(p),
			Bankrupt: p.Bankrupt,
		})
	}

	sort.SliceStable(rankings, func(i, j int) bool {
		return rankings[i].NetWorth > rankings[j].NetWorth
	})

	that.Rankings = rankings
	that.WinnerID = rankings[0].PlayerID
}

// netWorth is cash plus the acquisition cost of current holdings,
// counting the upgrade cost of upgraded properties.
func (that *PolyGame) netWorth(player *PolyPlayer) int {
	worth := player.Cash
	for _, pos := range player.Properties {
		space := that.Board[pos]
		worth += space.BuyPrice
		if space.Upgraded {
			worth += space.UpgradeCost
		}
	}

	return worth
}

func (that *PolyGame) shuffledDeck() []ChanceCard {
	deck := make([]ChanceCard, len(chanceCards))
	copy(deck, chanceCards)

	that.rng.Shuffle(len(deck), func(i, j int) {
		deck[i], deck[j] = deck[j], deck[i]
	})

	return deck
}
