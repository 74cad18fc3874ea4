package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/dictee/internal/discord"
	"github.com/MrWong99/dictee/internal/game"
)

// ItemCommands implements the cosmetic item shop: /register_item, /items,
// /buy, /inventory and /equip.
type ItemCommands struct {
	store game.ItemStore
	perms *discord.PermissionChecker
}

// NewItemCommands creates ItemCommands and registers them with router. Only
// members perms counts as staff may register items.
func NewItemCommands(router *discord.CommandRouter, store game.ItemStore, perms *discord.PermissionChecker) *ItemCommands {
	ic := &ItemCommands{store: store, perms: perms}
	ic.Register(router)
	return ic
}

// Register registers the item commands with the router.
func (ic *ItemCommands) Register(router *discord.CommandRouter) {
	for _, def := range ic.Definitions() {
		switch def.Name {
		case "register_item":
			router.RegisterCommand(def, ic.handleRegister)
		case "items":
			router.RegisterCommand(def, ic.handleItems)
		case "buy":
			router.RegisterCommand(def, ic.handleBuy)
		case "inventory":
			router.RegisterCommand(def, ic.handleInventory)
		case "equip":
			router.RegisterCommand(def, ic.handleEquip)
		}
	}
}

// Definitions returns the ApplicationCommand definitions for Discord.
func (ic *ItemCommands) Definitions() []*discordgo.ApplicationCommand {
	kinds := make([]*discordgo.ApplicationCommandOptionChoice, len(game.ItemKinds))
	for n, k := range game.ItemKinds {
		kinds[n] = &discordgo.ApplicationCommandOptionChoice{Name: string(k), Value: string(k)}
	}
	minPrice := 0.0
	itemName := &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "name",
		Description: "Name of the item",
		Required:    true,
		MaxLength:   30,
	}

	return []*discordgo.ApplicationCommand{
		{
			Name:        "register_item",
			Description: "Register a cosmetic item for sale (staff only)",
			Options: []*discordgo.ApplicationCommandOption{
				itemName,
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "type",
					Description: "Character slot the item occupies",
					Required:    true,
					Choices:     kinds,
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "price",
					Description: "Price in crumbs",
					Required:    true,
					MinValue:    &minPrice,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "image_name",
					Description: "File name of the item layer image",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "message_id",
					Description: "Shop message advertising the item",
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "emoji",
					Description: "Reaction on the shop message",
				},
			},
		},
		{
			Name:        "items",
			Description: "List the registered items",
		},
		{
			Name:        "buy",
			Description: "Buy a registered item with your crumbs",
			Options:     []*discordgo.ApplicationCommandOption{itemName},
		},
		{
			Name:        "inventory",
			Description: "Show the items a member owns",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "member",
					Description: "Member to look up (default: you)",
				},
			},
		},
		{
			Name:        "equip",
			Description: "Wear one of your items",
			Options:     []*discordgo.ApplicationCommandOption{itemName},
		},
	}
}

// handleRegister handles /register_item.
func (ic *ItemCommands) handleRegister(r discord.Responder, i *discordgo.InteractionCreate) {
	if !ic.perms.IsStaff(i.Member) {
		discord.RespondEphemeral(r, i, "Only staff can register items.")
		return
	}

	var it game.Item
	for _, opt := range i.ApplicationCommandData().Options {
		switch opt.Name {
		case "name":
			it.Name = strings.TrimSpace(opt.StringValue())
		case "type":
			it.Kind = game.ItemKind(opt.StringValue())
		case "price":
			it.Price = int(opt.IntValue())
		case "image_name":
			it.ImageName = strings.TrimSpace(opt.StringValue())
		case "message_id":
			it.MessageID = opt.StringValue()
		case "emoji":
			it.Emoji = opt.StringValue()
		}
	}
	if err := it.Validate(); err != nil {
		discord.RespondError(r, i, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	err := ic.store.RegisterItem(ctx, it)
	switch {
	case errors.Is(err, game.ErrItemExists):
		discord.RespondEphemeral(r, i, fmt.Sprintf("An item named **%s** or using `%s` is already registered.", it.Name, it.ImageName))
	case err != nil:
		slog.Error("commands: register item", "item", it.Name, "err", err)
		discord.RespondError(r, i, errors.New("could not register the item"))
	default:
		slog.Info("item registered", "item", it.Name, "kind", it.Kind, "price", it.Price, "by", discord.InteractionUserID(i))
		discord.RespondEphemeral(r, i, fmt.Sprintf("Registered **%s** (%s) for `%d` crumbs.", it.Name, it.Kind, it.Price))
	}
}

// handleItems handles /items.
func (ic *ItemCommands) handleItems(r discord.Responder, i *discordgo.InteractionCreate) {
	discord.DeferReply(r, i, true)

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	items, err := ic.store.Items(ctx)
	if err != nil {
		slog.Error("commands: list items", "err", err)
		discord.FollowUp(r, i, "Could not load the items, please try again later.")
		return
	}
	discord.FollowUpEmbed(r, i, itemsEmbed(items))
}

func itemsEmbed(items []game.Item) *discordgo.MessageEmbed {
	var b strings.Builder
	if len(items) == 0 {
		b.WriteString("No items registered.")
	}
	for _, it := range items {
		fmt.Fprintf(&b, "**%s**: `%d` crumbs. (**%s**)\n", it.Name, it.Price, it.Kind)
	}
	return &discordgo.MessageEmbed{
		Title:       "__Registered Items__",
		Description: strings.TrimRight(b.String(), "\n"),
		Color:       0x5865F2,
	}
}

// handleBuy handles /buy name.
func (ic *ItemCommands) handleBuy(r discord.Responder, i *discordgo.InteractionCreate) {
	userID := discord.InteractionUserID(i)
	name := itemNameOption(i)

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	it, err := ic.store.BuyItem(ctx, userID, name)
	switch {
	case errors.Is(err, game.ErrItemNotFound):
		discord.RespondEphemeral(r, i, fmt.Sprintf("There is no item called **%s**. See /items.", name))
	case errors.Is(err, game.ErrItemOwned):
		discord.RespondEphemeral(r, i, fmt.Sprintf("You already own **%s**.", name))
	case errors.Is(err, game.ErrInsufficientFunds):
		discord.RespondEphemeral(r, i, fmt.Sprintf("You do not have enough crumbs for **%s**.", name))
	case err != nil:
		slog.Error("commands: buy item", "user_id", userID, "item", name, "err", err)
		discord.RespondError(r, i, errors.New("could not buy the item"))
	default:
		slog.Info("item bought", "user_id", userID, "item", it.Name, "price", it.Price)
		discord.Respond(r, i, fmt.Sprintf("🛍️ <@%s> bought **%s** for `%d` crumbs.", userID, it.Name, it.Price))
	}
}

// handleInventory handles /inventory [member].
func (ic *ItemCommands) handleInventory(r discord.Responder, i *discordgo.InteractionCreate) {
	userID := discord.InteractionUserID(i)
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == "member" {
			if u := opt.UserValue(nil); u != nil {
				userID = u.ID
			}
		}
	}

	discord.DeferReply(r, i, true)

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	inv, err := ic.store.Inventory(ctx, userID)
	if err != nil {
		slog.Error("commands: load inventory", "user_id", userID, "err", err)
		discord.FollowUp(r, i, "Could not load the inventory, please try again later.")
		return
	}
	discord.FollowUpEmbed(r, i, inventoryEmbed(userID, inv))
}

func inventoryEmbed(userID string, inv []game.OwnedItem) *discordgo.MessageEmbed {
	var b strings.Builder
	fmt.Fprintf(&b, "<@%s>\n", userID)
	if len(inv) == 0 {
		b.WriteString("No items yet.")
	}
	for _, o := range inv {
		mark := "▫️"
		if o.Enabled {
			mark = "✅"
		}
		fmt.Fprintf(&b, "%s **%s** (%s)\n", mark, o.Name, o.Kind)
	}
	return &discordgo.MessageEmbed{
		Title:       "🎒 Inventory",
		Description: strings.TrimRight(b.String(), "\n"),
		Color:       0x57F287,
	}
}

// handleEquip handles /equip name.
func (ic *ItemCommands) handleEquip(r discord.Responder, i *discordgo.InteractionCreate) {
	userID := discord.InteractionUserID(i)
	name := itemNameOption(i)

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	err := ic.store.EquipItem(ctx, userID, name)
	switch {
	case errors.Is(err, game.ErrItemNotOwned):
		discord.RespondEphemeral(r, i, fmt.Sprintf("You do not own **%s**.", name))
	case err != nil:
		slog.Error("commands: equip item", "user_id", userID, "item", name, "err", err)
		discord.RespondError(r, i, errors.New("could not equip the item"))
	default:
		discord.RespondEphemeral(r, i, fmt.Sprintf("You are now wearing **%s**.", name))
	}
}

func itemNameOption(i *discordgo.InteractionCreate) string {
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == "name" {
			return strings.TrimSpace(opt.StringValue())
		}
	}
	return ""
}
